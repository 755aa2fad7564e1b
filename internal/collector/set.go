package collector

import "sort"

// Set is a set of subdomain names. Membership is plain string equality.
type Set struct {
	items map[string]struct{}
}

// NewSet returns a set holding items.
func NewSet(items ...string) *Set {
	s := &Set{items: make(map[string]struct{}, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item and reports whether it was not present before.
func (s *Set) Add(item string) bool {
	if item == "" {
		return false
	}
	if _, ok := s.items[item]; ok {
		return false
	}
	s.items[item] = struct{}{}
	return true
}

func (s *Set) Has(item string) bool {
	_, ok := s.items[item]
	return ok
}

func (s *Set) Len() int {
	return len(s.items)
}

// Sorted returns the members in lexicographic order.
func (s *Set) Sorted() []string {
	out := make([]string, 0, len(s.items))
	for item := range s.items {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// Difference returns the sorted members of s that are not in other.
func (s *Set) Difference(other *Set) []string {
	var out []string
	for item := range s.items {
		if other == nil || !other.Has(item) {
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}
