package plugin

import (
	"log/slog"
)

// Factory builds one plugin instance, typically decoding its config block
// from deps.Config. A factory that needs absent config keys fails, and
// registration of that name is skipped.
type Factory[T any] func(deps Deps) (T, error)

// Registry is an insertion-ordered, name-keyed set of live plugin
// instances built from a compile-time factory table. Unknown names fail
// closed at registration, never at dispatch time, and one name's failure
// does not affect the others.
//
// Registration happens once at startup; afterwards the registry is
// read-only, so Get and All are safe under concurrent dispatch without
// locking. There is no unregister: the active set is deployment-time
// configuration.
type Registry[T any] struct {
	kind      string
	factories map[string]Factory[T]
	logger    *slog.Logger

	names []string
	items map[string]T
}

// NewRegistry creates a registry over a factory table. kind is used only
// for logging ("handler", "alert").
func NewRegistry[T any](kind string, factories map[string]Factory[T], logger *slog.Logger) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: factories,
		logger:    logger,
		items:     make(map[string]T),
	}
}

// Register locates the factory for name and instantiates it. Failures
// (unknown name, duplicate, factory error) are logged and swallowed so the
// remaining names still load.
func (r *Registry[T]) Register(deps Deps, name string) {
	if _, dup := r.items[name]; dup {
		r.logger.Warn("duplicate registration skipped", "kind", r.kind, "name", name)
		return
	}

	factory, ok := r.factories[name]
	if !ok {
		r.logger.Error("unknown plugin name, skipping", "kind", r.kind, "name", name)
		return
	}

	item, err := factory(deps)
	if err != nil {
		r.logger.Error("plugin failed to load, skipping", "kind", r.kind, "name", name, "error", err)
		return
	}

	r.names = append(r.names, name)
	r.items[name] = item
	r.logger.Info("plugin registered", "kind", r.kind, "name", name)
}

// RegisterAll registers each name in order.
func (r *Registry[T]) RegisterAll(deps Deps, names []string) {
	for _, name := range names {
		r.Register(deps, name)
	}
}

// Get returns the instance registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	item, ok := r.items[name]
	return item, ok
}

// All returns the live instances in registration order. This order governs
// dispatch fan-out order.
func (r *Registry[T]) All() []T {
	out := make([]T, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.items[name])
	}
	return out
}

// Names returns the registered names in registration order.
func (r *Registry[T]) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of live instances.
func (r *Registry[T]) Len() int {
	return len(r.names)
}
