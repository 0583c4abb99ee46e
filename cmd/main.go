package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Vovarama1992/chat-sync/internal/config"
	"github.com/Vovarama1992/chat-sync/internal/directory"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatsync",
	Short: "chatsync keeps a chat session in sync with the messaging gateway",
	Long: `chatsync runs one user's chat session against the messaging gateway:
realtime messages, history paging, typing, read receipts and stars, plus the
starred board and a directory-backed user loader, all exposed over HTTP.

Run without arguments to serve.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		if verbose || strings.EqualFold(cfg.LogLevel, "debug") {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "chatsync.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(serveCmd, lookupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDirectory returns the Postgres directory when a database is configured
// and the REST one otherwise. The returned func releases its resources.
func openDirectory(ctx context.Context) (directory.Service, func(), error) {
	if cfg.Directory.DatabaseURL == "" {
		logger.Info("directory over http", zap.String("url", cfg.Directory.URL))
		return directory.NewHTTPService(cfg.Directory.URL), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Directory.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	logger.Info("directory over postgres")
	return directory.NewRepo(db), func() { _ = db.Close() }, nil
}

func newCache(svc directory.Service) *directory.Cache {
	return directory.NewCache(svc, directory.Options{
		TTL:           cfg.GetCacheTTL(),
		Capacity:      cfg.Directory.CacheCapacity,
		LookupTimeout: cfg.GetLookupTimeout(),
	}, logger)
}
