package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/echovox/echovox/pkg/sink"
)

// ErrSinkNotRegistered is returned by [Registry.CreateSink] when no factory
// has been registered under the requested sink name.
var ErrSinkNotRegistered = errors.New("config: sink not registered")

// Registry maps sink adapter names to their constructor functions. It is
// safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]func(SinkConfig) (sink.Sink, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		sinks: make(map[string]func(SinkConfig) (sink.Sink, error)),
	}
}

// RegisterSink registers a sink adapter factory under name. Subsequent
// calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSink(name string, factory func(SinkConfig) (sink.Sink, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = factory
}

// CreateSink instantiates a sink adapter using the factory registered under
// entry.Name. Returns [ErrSinkNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSink(entry SinkConfig) (sink.Sink, error) {
	r.mu.RLock()
	factory, ok := r.sinks[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSinkNotRegistered, entry.Name)
	}
	return factory(entry)
}
