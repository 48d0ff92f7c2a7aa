package channels

import (
	"fmt"
	"sync"
)

// Registry manages channel instances by name. All preserves registration order.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	order    []string
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the registry.
func (r *Registry) Register(c Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.channels[name]; exists {
		return fmt.Errorf("channel %q already registered", name)
	}
	r.channels[name] = c
	r.order = append(r.order, name)
	return nil
}

// Get returns a channel by name.
func (r *Registry) Get(name string) (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("channel %q not found", name)
	}
	return c, nil
}

// List returns all registered channel names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// All returns all registered channels.
func (r *Registry) All() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Channel, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.channels[name])
	}
	return out
}

// ByKind returns the registered channels of one cadence group.
func (r *Registry) ByKind(kind Kind) []Channel {
	var out []Channel
	for _, c := range r.All() {
		if c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}
