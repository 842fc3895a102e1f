// Package access decides which browser origins may call the API.
package access

import "strings"

// Wildcard in the allow-list admits every origin.
const Wildcard = "*"

// Policy is an immutable origin allow-list.
type Policy struct {
	allowAll bool
	origins  map[string]struct{}
}

// NewPolicy builds a policy from configured origins. An empty list, or one that
// contains Wildcard, allows every origin.
func NewPolicy(origins []string) *Policy {
	p := &Policy{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == Wildcard {
			p.allowAll = true
		}
		p.origins[normalize(o)] = struct{}{}
	}
	if len(p.origins) == 0 {
		p.allowAll = true
	}
	return p
}

// IsAllowed reports whether a request carrying the given Origin header may be
// annotated as cross-origin permitted. Requests without an Origin are always allowed.
func (p *Policy) IsAllowed(origin string) bool {
	if origin == "" || p == nil || p.allowAll {
		return true
	}
	_, ok := p.origins[normalize(origin)]
	return ok
}

// AllowsAll reports whether the policy admits every origin.
func (p *Policy) AllowsAll() bool {
	return p == nil || p.allowAll
}

// normalize strips a single trailing slash.
func normalize(origin string) string {
	return strings.TrimSuffix(origin, "/")
}
