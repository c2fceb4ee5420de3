package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oriys/orkl/internal/logging"
	"github.com/oriys/orkl/internal/mcpserver"
	"github.com/oriys/orkl/internal/metrics"
	"github.com/oriys/orkl/internal/observability"
	"github.com/oriys/orkl/internal/orkl"
)

func serveCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long:  "Run the ORKL MCP server on stdin/stdout, optionally exposing Prometheus metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(sigCtx)
			defer cancel()

			if err := observability.Init(ctx, observability.Config{
				Enabled:        cfg.Telemetry.Enabled,
				Exporter:       cfg.Telemetry.Exporter,
				Endpoint:       cfg.Telemetry.Endpoint,
				ServiceName:    "orkl",
				ServiceVersion: version,
				SampleRate:     cfg.Telemetry.SampleRate,
			}); err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer func() {
				if err := observability.Shutdown(context.Background()); err != nil {
					logging.Op().Warn("telemetry shutdown failed", "error", err)
				}
			}()
			metrics.Init("orkl")

			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			defer func() {
				logging.Op().Info("ORKL MCP server shutting down")
				client.Close()
				logging.Default().Close()
			}()

			logging.Op().Info("ORKL MCP server starting",
				"version", version,
				"api", cfg.APIBaseURL,
				"cache", cfg.UseCache,
				"rate_limit", fmt.Sprintf("%d/%s", cfg.RateLimitRequests, cfg.RateLimitPeriod),
			)
			checkConnectivity(ctx, client)

			server := mcpserver.New(client, version)
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				// stdin closing ends the session; take the metrics listener down with it.
				defer cancel()
				if err := server.Run(gctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("mcp server: %w", err)
				}
				return nil
			})

			if cfg.Metrics.Addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				httpServer := &http.Server{
					Addr:              cfg.Metrics.Addr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				g.Go(func() error {
					logging.Op().Info("metrics listener started", "addr", cfg.Metrics.Addr)
					if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("metrics server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return httpServer.Shutdown(shutdownCtx)
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9102)")
	return cmd
}

// checkConnectivity probes the API once, bypassing the cache. A failure
// is logged and the server starts anyway.
func checkConnectivity(ctx context.Context, client *orkl.Client) {
	ctx, cancel := context.WithTimeout(ctx, client.Config().RequestTimeout)
	defer cancel()
	if _, err := client.LibraryInfo(ctx, orkl.BypassCache()); err != nil {
		logging.Op().Warn("failed to connect to ORKL API", "error", err)
		return
	}
	logging.Op().Info("connected to ORKL API")
}
