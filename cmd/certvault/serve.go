package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/certvault/pkg/api"
)

var (
	serveAddr string
	watch     bool
	legacy    bool
	rateLimit float64
	rateBurst int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the records over HTTP",
	Long: `Serve exposes the records at /ssls, /ssl/:n, /search and /uisettings,
with Prometheus metrics at /metrics. With --watch, record files edited by
hand or by another process are picked up without a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx, false)
		if err != nil {
			return err
		}

		handler := api.NewHandler(store, api.Config{
			Legacy:    legacy,
			RateLimit: rateLimit,
			Burst:     rateBurst,
			Logger:    slog.Default(),
		})

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		if watch {
			events, err := store.Watch(gctx)
			if err != nil {
				return err
			}
			g.Go(func() error {
				return store.Follow(gctx, events)
			})
		}

		g.Go(func() error {
			slog.Info("server started", "addr", serveAddr, "records", store.Len(), "legacy", legacy, "watch", watch)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			slog.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":1337", "Listen address")
	serveCmd.Flags().BoolVar(&watch, "watch", false, "Reload when record files change on disk")
	serveCmd.Flags().BoolVar(&legacy, "legacy", false, "Answer failures with 200 and an empty body")
	serveCmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "Requests per second (0 disables)")
	serveCmd.Flags().IntVar(&rateBurst, "burst", 0, "Rate limit burst (default: the rate)")
}
