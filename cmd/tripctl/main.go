// Command tripctl administers a tripcost deployment: it inspects the
// request ledger, clears the response cache and prices trips from the
// shell, using the same environment configuration as the server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Sternrassler/tripcost/internal/app"
	"github.com/Sternrassler/tripcost/internal/config"
	"github.com/Sternrassler/tripcost/pkg/logging"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ctx := context.Background()

	cmd := newApp(os.Stdout, func(ctx context.Context) (*app.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		logger := logging.Setup(logging.Config{
			Level:  logging.LogLevel(cfg.LogLevel),
			Pretty: true,
			Output: os.Stderr,
		})
		return app.Build(ctx, cfg, logger)
	})

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
