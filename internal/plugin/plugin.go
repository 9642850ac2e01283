// Package plugin defines the handler and alert-channel capability
// contracts and the name-keyed registries that load them from
// configuration at startup.
package plugin

import (
	"context"
	"errors"
	"log/slog"

	"tradehook/internal/config"
	"tradehook/internal/domain"
	"tradehook/internal/tradovate"
)

// ErrNoData is returned by a handler invoked with an event it cannot read.
var ErrNoData = errors.New("no event data provided")

// Handler turns one trading-signal event into a broker-facing or logging
// side effect. Run takes the event explicitly and must be safe for
// concurrent invocation; implementations that keep cross-call state (e.g.
// a file counter) serialize it internally.
type Handler interface {
	Name() string
	Run(ctx context.Context, evt domain.Event) error
}

// Alert notifies an operator about a handler failure.
type Alert interface {
	Name() string
	Notify(ctx context.Context, subject, message string) error
}

// Deps is what factories get to build plugin instances. Orders is nil
// unless the Tradovate session was brought up at startup.
type Deps struct {
	Config *config.Config
	Logger *slog.Logger
	Orders *tradovate.Orders
}
