// Package main provides syncctl, the maintenance CLI of the sync queues.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jnst/storefront-sync/internal/cli"
	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, err
		}

		// Logs go to stderr so json output on stdout stays parseable.
		slog.SetDefault(logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))

		return cfg, nil
	}

	err := cli.NewRootCommand(loadConfig).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}

	stop()
	os.Exit(cli.GetExitCode(err))
}
