package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pantheon-bots/pantheon/internal/config"
	"github.com/pantheon-bots/pantheon/internal/container"
)

var (
	relayConfigPath string
	relayVerbose    bool
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the chat-relay orchestrator (pollers + webhook listener)",
	RunE:  runRelay,
}

func init() {
	relayCmd.Flags().StringVarP(&relayConfigPath, "config", "c", "", "Config file path")
	relayCmd.Flags().BoolVarP(&relayVerbose, "verbose", "v", false, "Verbose logging")
}

func runRelay(_ *cobra.Command, _ []string) error {
	if relayVerbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg, err := config.Load(relayConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	fmt.Printf("%s Starting pantheon relay (%d agents, webhook on %s)...\n",
		logo, len(c.Registry().Ordered()), cfg.Webhook.Listen)

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	for _, p := range c.DMPollers() {
		g.Go(func() error { return p.Run(gctx) })
	}
	g.Go(func() error { return c.ChannelPoller().Run(gctx) })
	g.Go(func() error { return c.WebhookServer().Run(gctx) })
	g.Go(func() error { return c.Janitor().Start(gctx) })
	g.Go(func() error {
		// The watcher is an optimization; mtime polling still works
		// without it, so its failure never brings the relay down.
		if err := c.SettingsStore().Watch(gctx); err != nil && gctx.Err() == nil {
			slog.Warn("settings watcher unavailable", "err", err)
		}
		return nil
	})

	fmt.Printf("%s Relay running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "relay error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
