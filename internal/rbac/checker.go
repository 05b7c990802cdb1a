package rbac

import (
	"context"
	"strings"
)

type ctxKey string

const roleKey ctxKey = "rbac.role"

// WithRole returns a child context carrying the caller's role.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// RoleFromContext extracts the role attached by the auth middleware.
func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(roleKey).(string)
	return v, ok && v != ""
}

// Checker answers permission questions against a role->permissions policy.
type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(policy map[string][]string) *Checker {
	return &Checker{RolePermissions: policy}
}

// Has reports whether role holds perm. A policy entry of "*" grants
// everything; "grading:*" grants every grading permission.
func (c *Checker) Has(role, perm string) bool {
	for _, p := range c.RolePermissions[role] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func (c *Checker) All(role string, perms ...string) bool {
	for _, p := range perms {
		if !c.Has(role, p) {
			return false
		}
	}
	return true
}

func matchPerm(granted, want string) bool {
	if granted == "*" || granted == want {
		return true
	}
	if strings.HasSuffix(granted, ":*") {
		return strings.HasPrefix(want, strings.TrimSuffix(granted, "*"))
	}
	return false
}
