package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vetref/electrolyte-cli/internal/api"
	"github.com/vetref/electrolyte-cli/internal/consensus"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the calculators as a JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		loader, closeFn, err := newLoader(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		// Warm the cache; the API answers 503 on rule endpoints until a
		// later request loads successfully.
		if _, err := loader.Load(ctx); err != nil {
			zap.L().Warn("serve: starting without ruleset", zap.Error(err))
		}

		go reloadOnHangup(ctx, loader)

		srv, err := api.New(loader, nil, api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Engine:         engineOptions(cfg),
		})
		if err != nil {
			return eris.Wrap(err, "serve: build api")
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(),
				time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// reloadOnHangup refetches the ruleset on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, loader *consensus.Loader) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			rs, err := loader.Reload(ctx)
			if err != nil {
				zap.L().Error("serve: ruleset reload failed", zap.Error(err))
				continue
			}
			zap.L().Info("serve: ruleset reloaded", zap.String("version", rs.Version))
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
