package authz

import (
	"context"
	"sync"
)

// Resolver picks the controller for an invocation: the injected default, a
// factory-built override, or a named registry lookup. Factory-built
// instances are cached for the life of the process; registry lookups are
// resolved fresh every call.
type Resolver struct {
	def      Controller
	registry Registry

	mu    sync.RWMutex
	cache map[Factory]Controller
}

func NewResolver(def Controller, registry Registry) *Resolver {
	return &Resolver{
		def:      def,
		registry: registry,
		cache:    make(map[Factory]Controller),
	}
}

// Resolve returns the controller to use for inv. A factory override wins
// over a named reference; with neither, the default controller is returned.
func (r *Resolver) Resolve(ctx context.Context, inv *Invocation) (Controller, error) {
	if inv.Factory != nil {
		return r.fromFactory(inv.Factory)
	}
	if inv.ControllerRef != "" {
		if r.registry == nil {
			return nil, ErrUnresolvedController
		}
		c, err := r.registry.Controller(ctx, inv.ControllerRef)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return r.def, nil
}

func (r *Resolver) fromFactory(f Factory) (Controller, error) {
	r.mu.RLock()
	c, ok := r.cache[f]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have built the instance while we waited.
	if c, ok := r.cache[f]; ok {
		return c, nil
	}
	c, err := f.New()
	if err != nil {
		return nil, &ControllerInitError{Factory: f, Err: err}
	}
	r.cache[f] = c
	return c, nil
}
