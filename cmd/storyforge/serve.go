package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the story library over HTTP",
		Long: `Serve the library API:
  GET   /api/stories             list (status, niche, group, q, limit)
  GET   /api/stories/:id         one story
  PATCH /api/stories/:id/status  advance the workflow status
  GET   /metrics                 Prometheus metrics
Set STORYFORGE_API_TOKEN to require a bearer token on /api.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(st, secrets.APIToken, consoleLogger()).Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr from config)")
	return cmd
}
