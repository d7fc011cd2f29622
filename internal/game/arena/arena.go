// Package arena provides a dense, id-addressable store with swap-remove deletion.
//
// Entries live in a contiguous slice in insertion order until a removal swaps the
// last entry into the freed slot. Iteration never observes a half-removed entry:
// callers that remove while iterating must use RemoveIf.
package arena

import "fmt"

type entry[T any] struct {
	id  string
	val T
}

// Store is a dense id → value store. It is not safe for concurrent use; the owning
// room serialises access.
type Store[T any] struct {
	items []entry[T]
	index map[string]int
}

// New returns an empty Store.
func New[T any]() *Store[T] {
	return &Store[T]{index: make(map[string]int)}
}

// Len returns the number of live entries.
func (s *Store[T]) Len() int { return len(s.items) }

// Insert adds val under id.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an error if id is already present; otherwise Get(id) returns val.
func (s *Store[T]) Insert(id string, val T) error {
	if id == "" {
		return fmt.Errorf("arena: empty id")
	}
	if _, ok := s.index[id]; ok {
		return fmt.Errorf("arena: duplicate id %q", id)
	}
	s.index[id] = len(s.items)
	s.items = append(s.items, entry[T]{id: id, val: val})
	return nil
}

// Get returns the value stored under id.
func (s *Store[T]) Get(id string) (T, bool) {
	i, ok := s.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.items[i].val, true
}

// Has reports whether id is present.
func (s *Store[T]) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Remove deletes id by swapping the last entry into its slot.
//
// Postcondition: Has(id) is false; returns whether an entry was removed.
func (s *Store[T]) Remove(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	last := len(s.items) - 1
	if i != last {
		s.items[i] = s.items[last]
		s.index[s.items[i].id] = i
	}
	var zero entry[T]
	s.items[last] = zero
	s.items = s.items[:last]
	delete(s.index, id)
	return true
}

// RemoveIf deletes every entry for which pred returns true and returns the number removed.
// It walks backwards so swapped-in entries have already been visited.
func (s *Store[T]) RemoveIf(pred func(id string, v T) bool) int {
	removed := 0
	for i := len(s.items) - 1; i >= 0; i-- {
		if i >= len(s.items) {
			continue
		}
		e := s.items[i]
		if pred(e.id, e.val) {
			s.Remove(e.id)
			removed++
		}
	}
	return removed
}

// Each calls fn for every entry in slot order. fn must not insert or remove entries.
func (s *Store[T]) Each(fn func(id string, v T)) {
	for _, e := range s.items {
		fn(e.id, e.val)
	}
}

// Values returns a copy of the live values in slot order.
func (s *Store[T]) Values() []T {
	out := make([]T, len(s.items))
	for i, e := range s.items {
		out[i] = e.val
	}
	return out
}

// IDs returns a copy of the live ids in slot order.
func (s *Store[T]) IDs() []string {
	out := make([]string, len(s.items))
	for i, e := range s.items {
		out[i] = e.id
	}
	return out
}
