package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scopeward/scopeward/internal/auth"
)

// TypedController is the usual process-wide default controller: it
// dispatches each rule to the handler registered for the rule's Type. A rule
// whose type has no handler is refused and logged, since silently allowing
// an unhandled rule would widen access on a typo.
type TypedController struct {
	mu       sync.RWMutex
	handlers map[string]Controller
	logger   *slog.Logger
}

func NewTypedController(logger *slog.Logger) *TypedController {
	if logger == nil {
		logger = slog.Default()
	}
	return &TypedController{
		handlers: make(map[string]Controller),
		logger:   logger,
	}
}

// Handle registers the handler for a rule type, replacing any previous one.
func (c *TypedController) Handle(ruleType string, handler Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[ruleType] = handler
}

func (c *TypedController) Control(ctx context.Context, rule auth.DataAccess, inv *Invocation) bool {
	c.mu.RLock()
	handler, ok := c.handlers[rule.Type]
	c.mu.RUnlock()
	if !ok {
		c.logger.Warn("no handler for data access rule type",
			"type", rule.Type,
			"action", rule.Action,
		)
		return false
	}
	return handler.Control(ctx, rule, inv)
}

// NamedRegistry is an in-memory Registry for applications without a
// dependency container. Registration is expected at startup; lookups are
// safe from concurrent checks.
type NamedRegistry struct {
	mu          sync.RWMutex
	controllers map[string]Controller
}

func NewNamedRegistry() *NamedRegistry {
	return &NamedRegistry{controllers: make(map[string]Controller)}
}

// Register adds a named controller, replacing any previous registration.
func (r *NamedRegistry) Register(name string, controller Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[name] = controller
}

func (r *NamedRegistry) Controller(ctx context.Context, name string) (Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedController, name)
	}
	return c, nil
}
