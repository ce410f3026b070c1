package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/example/menuboard/pkg/client"
	"github.com/example/menuboard/pkg/guard"
	"github.com/example/menuboard/pkg/identity"
	"github.com/example/menuboard/pkg/session"
)

// app is one CLI invocation's client stack: identity provider, API client
// and the session context tying them together.
type app struct {
	cfg      *cliConfig
	out      io.Writer
	logger   *zap.Logger
	provider identity.Provider
	api      *client.Client
	session  *session.Context
	nav      *session.Navigator
}

func newApp(cfg *cliConfig, provider identity.Provider, out io.Writer, logger *zap.Logger) (*app, error) {
	api, err := client.New(cfg.APIURL, provider, client.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, out: out, logger: logger, provider: provider, api: api}
	a.session = session.New(provider, api,
		session.WithLogger(logger),
		session.WithNotifier(a.notify))
	api.SetUnauthorizedHandler(a.session.HandleUnauthorized)
	a.nav = session.NewNavigator(a.session,
		session.WithResolveTimeout(cfg.ResolveTimeout),
		session.WithNavigatorLogger(logger))
	return a, nil
}

func (a *app) start(ctx context.Context) {
	a.session.Start(ctx)
}

func (a *app) close() {
	a.session.Close()
}

// signIn signs in with the configured credentials and waits for the
// backend snapshot.
func (a *app) signIn(ctx context.Context) (session.State, error) {
	email, password, err := a.cfg.credentials()
	if err != nil {
		return session.State{}, err
	}
	if _, err := a.provider.SignIn(ctx, email, password); err != nil {
		return session.State{}, fmt.Errorf("sign in: %w", err)
	}
	if _, err := a.nav.Resolve(ctx, guard.PathHome); err != nil {
		return session.State{}, err
	}
	return a.session.State(), nil
}

func (a *app) notify(n session.Notification) {
	var c *color.Color
	switch n.Level {
	case session.LevelError:
		c = color.New(color.FgRed)
	case session.LevelWarning:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgCyan)
	}
	if n.Err != nil {
		c.Fprintf(a.out, "[%s] %s (%v)\n", n.Level, n.Message, n.Err)
		return
	}
	c.Fprintf(a.out, "[%s] %s\n", n.Level, n.Message)
}
