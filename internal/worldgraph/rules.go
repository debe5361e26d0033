package worldgraph

import (
	"fmt"
	"strings"
)

// Rule is an access condition evaluated against a collection state.
type Rule interface {
	Satisfied(s *State) bool
	String() string
}

// Always is satisfied unconditionally.
type Always struct{}

func (Always) Satisfied(*State) bool { return true }
func (Always) String() string        { return "always" }

// Has requires Count copies of an item (at least one when Count is zero).
type Has struct {
	Item  string
	Count int
}

func (h Has) Satisfied(s *State) bool { return s.Count(h.Item) >= max(h.Count, 1) }

func (h Has) String() string {
	if h.Count > 1 {
		return fmt.Sprintf("has %d× %q", h.Count, h.Item)
	}
	return fmt.Sprintf("has %q", h.Item)
}

// CanReachLocation requires another location to be reachable.
type CanReachLocation struct {
	Location string
}

func (c CanReachLocation) Satisfied(s *State) bool { return s.CanReachLocation(c.Location) }
func (c CanReachLocation) String() string          { return fmt.Sprintf("can reach %q", c.Location) }

// All is satisfied when every rule is. An empty All is always satisfied.
type All []Rule

func (a All) Satisfied(s *State) bool {
	for _, r := range a {
		if !r.Satisfied(s) {
			return false
		}
	}
	return true
}

func (a All) String() string {
	parts := make([]string, len(a))
	for i, r := range a {
		parts[i] = r.String()
	}
	return "(" + strings.Join(parts, " and ") + ")"
}
