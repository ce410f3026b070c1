// Command menuctl drives the menuboard API the way the web client does:
// Firebase sign-in, the session context and the route guards.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/example/menuboard/pkg/identity"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	registry := NewCommandRegistry(VersionInfo{Version: version, Commit: commit, Date: date}, os.Stdout, os.Stderr)
	registerCommands(registry, runWithApp, os.Stdout)

	if err := registry.Execute(os.Args[1:]); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runWithApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if cfg.Debug {
		if logger, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logger.Sync()
	}

	provider := identity.NewFirebaseProvider(cfg.FirebaseAPIKey, identity.WithLogger(logger))
	a, err := newApp(cfg, provider, os.Stdout, logger)
	if err != nil {
		return err
	}
	a.start(ctx)
	defer a.close()
	return fn(ctx, a)
}
