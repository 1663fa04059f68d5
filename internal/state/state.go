// Package state holds the viewer's shared UI state and notifies listeners
// when it changes.
package state

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"trackamole/internal/models"
)

// Snapshot is an immutable copy of the state.
type Snapshot struct {
	Variant  models.BodyVariant
	Selected int64 // 0 when nothing is selected
	Adding   bool
	Pending  *r3.Vec // temporary marker position while adding
}

// HasSelection reports whether a marker is selected.
func (s Snapshot) HasSelection() bool { return s.Selected != 0 }

// Listener receives the previous and the new snapshot after a change.
type Listener func(prev, next Snapshot)

// Store is the observable app state. Listeners are called synchronously,
// outside the lock, in registration order.
type Store struct {
	mu        sync.Mutex
	cur       Snapshot
	listeners map[int]Listener
	order     []int
	next      int
}

func New(variant models.BodyVariant) *Store {
	return &Store{cur: Snapshot{Variant: variant}, listeners: make(map[int]Listener)}
}

func (s *Store) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *Store) update(fn func(*Snapshot)) {
	s.mu.Lock()
	prev := s.cur
	fn(&s.cur)
	next := s.cur
	if prev == next {
		s.mu.Unlock()
		return
	}
	fns := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(prev, next)
	}
}

// SetVariant switches body variant. Selection and any pending marker are
// cleared since marker IDs are variant scoped.
func (s *Store) SetVariant(v models.BodyVariant) {
	s.update(func(c *Snapshot) {
		if c.Variant == v {
			return
		}
		c.Variant = v
		c.Selected = 0
		c.Pending = nil
	})
}

// Select selects marker id; 0 deselects.
func (s *Store) Select(id int64) {
	s.update(func(c *Snapshot) { c.Selected = id })
}

func (s *Store) Deselect() { s.Select(0) }

// SetAdding toggles adding mode. Leaving it drops the pending position.
func (s *Store) SetAdding(on bool) {
	s.update(func(c *Snapshot) {
		c.Adding = on
		if !on {
			c.Pending = nil
		}
	})
}

// SetPending records where the user tapped while adding.
func (s *Store) SetPending(p r3.Vec) {
	s.update(func(c *Snapshot) {
		if c.Pending != nil && *c.Pending == p {
			return
		}
		v := p
		c.Pending = &v
	})
}

// ClearPending drops the temporary marker position.
func (s *Store) ClearPending() {
	s.update(func(c *Snapshot) { c.Pending = nil })
}
