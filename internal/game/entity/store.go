package entity

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrNotFound is returned when no entity is stored under an identifier.
	ErrNotFound = errors.New("entity not found")
	// ErrConflict is returned by Commit when an entity read by a batch was
	// changed by another writer before the batch could be applied.
	ErrConflict = errors.New("entity changed concurrently")
)

// Entity is implemented by every value held in a Store.
//
// Clone MUST return a deep copy that shares no mutable state with the receiver.
type Entity[T any] interface {
	EntityID() Identifier
	Clone() T
}

type record[T any] struct {
	value T
	rev   uint64
}

// Store is a concurrency-safe map from Identifier to entity value.
//
// Every write assigns the record a new, store-unique revision. Revision zero
// means "absent" and is never assigned to a stored record.
type Store[T Entity[T]] struct {
	name    string
	rank    int
	mu      sync.Mutex
	records map[Identifier]record[T]
	next    uint64
}

// NewStore creates an empty store.
//
// rank fixes the position of the store in the global lock order used by
// Commit: stores with a lower rank are always locked first.
func NewStore[T Entity[T]](name string, rank int) *Store[T] {
	return &Store[T]{
		name:    name,
		rank:    rank,
		records: make(map[Identifier]record[T]),
	}
}

// Name returns the store name used in errors and logs.
func (s *Store[T]) Name() string { return s.name }

// Get returns an owned copy of the entity stored under id.
//
// Postcondition: mutating the result never affects the stored value.
func (s *Store[T]) Get(id Identifier) (T, error) {
	v, _, err := s.getVersioned(id)
	return v, err
}

func (s *Store[T]) getVersioned(id Identifier) (T, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		var zero T
		return zero, 0, fmt.Errorf("%s %q: %w", s.name, id, ErrNotFound)
	}
	return rec.value.Clone(), rec.rev, nil
}

// Insert stores a copy of e under e.EntityID(), replacing any previous value.
func (s *Store[T]) Insert(e T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(e)
}

// Remove deletes the entity stored under id and reports whether it existed.
func (s *Store[T]) Remove(id Identifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id)
}

// Contains reports whether an entity is stored under id.
func (s *Store[T]) Contains(id Identifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}

// Len returns the number of stored entities.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// IDs returns the identifiers of all stored entities in ascending order.
func (s *Store[T]) IDs() []Identifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids()
}

func (s *Store[T]) ids() []Identifier {
	ids := make([]Identifier, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store[T]) put(e T) {
	s.next++
	s.records[e.EntityID()] = record[T]{value: e.Clone(), rev: s.next}
}

func (s *Store[T]) remove(id Identifier) bool {
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	return true
}

func (s *Store[T]) revision(id Identifier) uint64 {
	return s.records[id].rev
}

// View is the unlocked access handle passed to a Sweep callback. It is valid
// only for the duration of the callback.
type View[T Entity[T]] struct {
	s *Store[T]
}

// Get returns an owned copy of the entity stored under id.
func (v View[T]) Get(id Identifier) (T, bool) {
	rec, ok := v.s.records[id]
	if !ok {
		var zero T
		return zero, false
	}
	return rec.value.Clone(), true
}

// Put stores a copy of e, assigning it a new revision.
func (v View[T]) Put(e T) { v.s.put(e) }

// Remove deletes the entity stored under id and reports whether it existed.
func (v View[T]) Remove(id Identifier) bool { return v.s.remove(id) }

// IDs returns all stored identifiers in ascending order.
func (v View[T]) IDs() []Identifier { return v.s.ids() }

// Sweep holds the store lock for the whole call to fn.
//
// fn may read and write other stores, but only stores of a higher rank, so
// that sweeps and commits agree on the lock order. Any entity written
// through the view gets a new revision, which makes every in-flight batch
// that read it fail with ErrConflict.
func (s *Store[T]) Sweep(fn func(View[T])) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(View[T]{s: s})
}
