// Package roles holds the static authorization matrix: each operation is
// configured with a fixed set of roles allowed to perform it.
package roles

import (
	"fmt"

	"github.com/contactvault/contactvault/internal/domain"
)

// Checker is an allow-set of roles for one operation, built once at router
// configuration time.
type Checker struct {
	allowed map[domain.Role]struct{}
}

// Allow builds a Checker permitting exactly the given roles.
func Allow(allowed ...domain.Role) *Checker {
	set := make(map[domain.Role]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return &Checker{allowed: set}
}

// Permits reports whether the caller's role is in the allow-set.
func (c *Checker) Permits(r domain.Role) bool {
	if c == nil {
		return false
	}
	_, ok := c.allowed[r]
	return ok
}

// Parse validates a role string from untrusted input.
func Parse(s string) (domain.Role, error) {
	r := domain.Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
