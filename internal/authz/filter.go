package authz

import (
	"context"

	"github.com/scopeward/scopeward/internal/auth"
)

// matchingRules returns the permission's rules whose action is one of the
// requested actions. The result is a set: rules identical by value collapse.
func matchingRules(permission *auth.Permission, actions []string) map[auth.DataAccess]struct{} {
	requested := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		requested[a] = struct{}{}
	}

	rules := make(map[auth.DataAccess]struct{})
	for _, rule := range permission.DataAccesses {
		if _, ok := requested[rule.Action]; ok {
			rules[rule] = struct{}{}
		}
	}
	return rules
}

// combine evaluates the controller once per rule and folds the verdicts
// under the logical mode, short-circuiting as soon as the outcome is fixed.
// All is vacuously true and Any vacuously false on an empty set; the engine
// short-circuits empty sets before reaching here.
func combine(ctx context.Context, mode Logical, rules map[auth.DataAccess]struct{}, controller Controller, inv *Invocation) bool {
	for rule := range rules {
		ok := controller.Control(ctx, rule, inv)
		if mode == LogicalAll && !ok {
			return false
		}
		if mode == LogicalAny && ok {
			return true
		}
	}
	return mode == LogicalAll
}
