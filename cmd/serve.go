package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Vovarama1992/chat-sync/internal/chat"
	"github.com/Vovarama1992/chat-sync/internal/gateway"
	"github.com/Vovarama1992/chat-sync/internal/model"
	"github.com/Vovarama1992/chat-sync/internal/starred"
	"github.com/Vovarama1992/chat-sync/internal/userloader"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat session and its HTTP surface",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir, closeDir, err := openDirectory(ctx)
	if err != nil {
		return err
	}
	defer closeDir()

	me := model.UserID(cfg.Me)
	gw := gateway.New(gateway.Options{
		BaseURL:       cfg.Gateway.URL,
		SocketURL:     cfg.Gateway.SocketURL,
		Retries:       cfg.GetFetchRetries(),
		RetryInterval: cfg.GetRetryInterval(),
	}, logger)

	// --- state machines ---
	session := chat.NewService(chat.Config{
		Me:             me,
		RetryCountdown: cfg.Session.RetryCountdown,
		RetryTick:      cfg.GetRetryTick(),
	}, gw, gw, logger)
	board := starred.NewService(me, gw, logger)
	loader := userloader.NewService(newCache(dir), logger)

	// runs on the session loop, so seen needs no lock
	var seen []model.UserID
	session.Watch(func(st chat.State) {
		ids := chat.Participants(st, me)
		if len(ids) == 0 || slices.Equal(ids, seen) {
			return
		}
		seen = ids
		loader.Dispatch(userloader.Track{IDs: ids})
	})

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	chat.RegisterRoutes(r, chat.NewHandler(session))
	starred.RegisterRoutes(r, starred.NewHandler(board))
	userloader.RegisterRoutes(r, userloader.NewHandler(loader))
	r.Handle("/metrics", promhttp.Handler())

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	g.Go(func() error { return board.Run(gctx) })
	g.Go(func() error { return loader.Run(gctx) })
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("stopped", zap.Error(err))
	return err
}
