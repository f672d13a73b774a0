package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"workplace/internal/app"
	"workplace/internal/logging"
	"workplace/internal/server"
	"workplace/internal/tui"
)

const shutdownTimeout = 5 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.settings.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				c.settings.Server.BasePath = basePath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log, err := logging.New(c.settings)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := app.Bootstrap(c.settings, log)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving Workplace API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n",
				c.settings.Server.Addr, c.settings.Server.BasePath)
			return runServer(ctx, a, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides server.base_path)")
	return cmd
}

func (c *cli) dashCmd() *cobra.Command {
	var serve bool
	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Open the terminal dashboard",
		Long:  "Runs the workspace in-process and opens the dashboard. With --serve the HTTP API is hosted alongside, so remote commands show up live.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log, err := logging.ForTerminal(c.settings)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := app.Bootstrap(c.settings, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if !serve {
				return tui.Run(ctx, a.Store, tui.Options{Log: log.Named("tui")})
			}
			g, gctx := errgroup.WithContext(ctx)
			dashCtx, quit := context.WithCancel(gctx)
			g.Go(func() error {
				defer quit()
				return tui.Run(dashCtx, a.Store, tui.Options{Log: log.Named("tui")})
			})
			g.Go(func() error { return runServer(dashCtx, a, log) })
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "also serve the HTTP API on server.addr")
	return cmd
}

// runServer serves the workspace until ctx is done, then shuts down. Open
// event streams share ctx and end with it.
func runServer(ctx context.Context, a *app.App, log *zap.Logger) error {
	handler, err := server.New(server.Config{
		Store:      a.Store,
		Journal:    a.Journal,
		BasePath:   a.Settings.Server.BasePath,
		Logger:     log.Named("http"),
		Operator:   a.Settings.Operator.Name,
		WriteRate:  a.Settings.Server.WriteRate,
		WriteBurst: a.Settings.Server.WriteBurst,
	})
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.Settings.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("base_path", a.Settings.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
