// Package engine fans one inbound event out to every registered handler
// with isolated per-handler failure handling.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradehook/internal/domain"
	"tradehook/internal/plugin"
	"tradehook/internal/store"
)

// ErrEmptyEvent rejects payloads no handler can act on. This is the only
// error Dispatch returns: it means the event never reached any handler.
var ErrEmptyEvent = errors.New("event payload is empty or not a JSON object")

// Journal records per-handler dispatch outcomes. Implemented by
// store.PostgresStore; nil disables journaling.
type Journal interface {
	RecordDispatchAttempt(ctx context.Context, rec store.DispatchAttemptRecord) error
}

// Engine dispatches events to handlers sequentially in registration order.
// Ordering is deliberate: handler side effects stay ordered and debuggable,
// and the handler work here is small. Concurrent Dispatch calls from
// separate in-flight webhooks are safe because handlers take the event as
// an argument instead of holding it as instance state.
type Engine struct {
	handlers *plugin.Registry[plugin.Handler]
	alerts   *plugin.Registry[plugin.Alert]
	journal  Journal
	logger   *slog.Logger
}

func New(handlers *plugin.Registry[plugin.Handler], alerts *plugin.Registry[plugin.Alert], journal Journal, logger *slog.Logger) *Engine {
	return &Engine{
		handlers: handlers,
		alerts:   alerts,
		journal:  journal,
		logger:   logger,
	}
}

// HandlerCount returns the number of active handlers.
func (e *Engine) HandlerCount() int {
	return e.handlers.Len()
}

// Dispatch forwards the event to every registered handler in registration
// order. A failing handler is logged, reported to the alert channels and
// journaled; it never prevents later handlers from running. Dispatch
// returns nil once every handler has been attempted, regardless of
// individual outcomes.
func (e *Engine) Dispatch(ctx context.Context, evt domain.Event) error {
	if !evt.Valid() {
		return ErrEmptyEvent
	}

	for _, h := range e.handlers.All() {
		start := time.Now()
		err := e.runHandler(ctx, h, evt)
		elapsed := time.Since(start)

		if err != nil {
			e.logger.Error("handler failed",
				"handler", h.Name(),
				"error", err,
				"elapsed_ms", elapsed.Milliseconds(),
			)
			e.notifyAlerts(ctx, h.Name(), err)
		} else {
			e.logger.Info("handler completed",
				"handler", h.Name(),
				"elapsed_ms", elapsed.Milliseconds(),
			)
		}

		e.record(ctx, h.Name(), evt, err, elapsed)
	}

	return nil
}

// runHandler isolates one handler invocation; a panicking handler is
// converted into an error instead of taking down the dispatch loop.
func (e *Engine) runHandler(ctx context.Context, h plugin.Handler, evt domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Run(ctx, evt)
}

// notifyAlerts reports a handler failure to every alert channel. Alert
// failures are logged and dropped; alerting never escalates a dispatch.
func (e *Engine) notifyAlerts(ctx context.Context, handlerName string, handlerErr error) {
	if e.alerts == nil {
		return
	}
	subject := fmt.Sprintf("tradehook: handler %s failed", handlerName)
	message := handlerErr.Error()

	for _, a := range e.alerts.All() {
		if err := a.Notify(ctx, subject, message); err != nil {
			e.logger.Error("alert channel failed",
				"alert", a.Name(),
				"handler", handlerName,
				"error", err,
			)
		}
	}
}

func (e *Engine) record(ctx context.Context, handlerName string, evt domain.Event, handlerErr error, elapsed time.Duration) {
	if e.journal == nil {
		return
	}

	rec := store.DispatchAttemptRecord{
		HandlerName: handlerName,
		Payload:     evt.Payload,
		Status:      "success",
		DurationMs:  int(elapsed.Milliseconds()),
	}
	if handlerErr != nil {
		rec.Status = "failed"
		rec.ErrorText = handlerErr.Error()
	}

	if err := e.journal.RecordDispatchAttempt(ctx, rec); err != nil {
		e.logger.Error("failed to record dispatch attempt",
			"handler", handlerName,
			"error", err,
		)
	}
}
