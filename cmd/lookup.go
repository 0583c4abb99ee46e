package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Vovarama1992/chat-sync/internal/directory"
	"github.com/Vovarama1992/chat-sync/internal/model"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <user-id>...",
	Short: "Resolve user ids through the directory cache",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]model.UserID, 0, len(args))
		for _, a := range args {
			n, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", a)
			}
			ids = append(ids, model.UserID(n))
		}

		dir, closeDir, err := openDirectory(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDir()
		cache := newCache(dir)

		// repeated ids share one lookup
		pending := make([]<-chan directory.Result, len(ids))
		for i, id := range ids {
			pending[i] = cache.ResolveAsync(id)
		}

		failed := 0
		out := cmd.OutOrStdout()
		for i, ch := range pending {
			r := <-ch
			if r.Err != nil {
				failed++
				fmt.Fprintf(out, "%d\terror: %v\n", ids[i], r.Err)
				continue
			}
			fmt.Fprintf(out, "%d\t%s\n", r.User.ID, r.User.Name)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d lookups failed", failed, len(ids))
		}
		return nil
	},
}
