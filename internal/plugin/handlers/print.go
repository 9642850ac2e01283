// Package handlers holds the built-in handler plugins and their factory
// table. Handler names here are the values the handlers list in the config
// file accepts.
package handlers

import (
	"context"
	"log/slog"

	"tradehook/internal/domain"
	"tradehook/internal/plugin"
)

// Factories is the startup-time name → constructor table for handlers.
func Factories() map[string]plugin.Factory[plugin.Handler] {
	return map[string]plugin.Factory[plugin.Handler]{
		"print":       newPrint,
		"tradovate":   newTradovate,
		"ninjatrader": newNinjaTrader,
	}
}

// Print logs the full event payload. Useful as a smoke-test handler and as
// a dispatch audit trail.
type Print struct {
	logger *slog.Logger
}

func newPrint(deps plugin.Deps) (plugin.Handler, error) {
	return &Print{logger: deps.Logger}, nil
}

func (p *Print) Name() string { return "print" }

func (p *Print) Run(_ context.Context, evt domain.Event) error {
	if len(evt.Payload) == 0 {
		return plugin.ErrNoData
	}
	p.logger.Info("webhook event received",
		"handler", p.Name(),
		"payload", string(evt.Payload),
	)
	return nil
}
