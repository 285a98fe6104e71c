package fanout

import (
	"sort"
	"sync"
)

// Router is a flat registry of strategies by name.
type Router struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRouter(strategies ...Strategy) *Router {
	r := &Router{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register adds s under s.Name(), replacing any strategy of the same name.
func (r *Router) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Resolve returns the strategy registered under name or a *ConfigurationError.
func (r *Router) Resolve(name string) (Strategy, error) {
	r.mu.RLock()
	s, ok := r.strategies[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigurationError{Name: name, Available: r.Names()}
	}
	return s, nil
}

// Names lists the registered strategy names in order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
