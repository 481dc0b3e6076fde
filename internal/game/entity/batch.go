package entity

import (
	"fmt"
	"slices"
)

// Batch stages reads and writes against a single Store for an atomic Commit.
//
// A Batch records the revision of every entity it reads. Writes and removes
// are buffered and invisible to other readers until Commit succeeds.
// A Batch is not safe for concurrent use.
type Batch[T Entity[T]] struct {
	store   *Store[T]
	reads   map[Identifier]uint64
	cache   map[Identifier]T
	writes  map[Identifier]T
	removes map[Identifier]struct{}
}

// Batch returns a new, empty batch over s.
func (s *Store[T]) Batch() *Batch[T] {
	return &Batch[T]{
		store:   s,
		reads:   make(map[Identifier]uint64),
		cache:   make(map[Identifier]T),
		writes:  make(map[Identifier]T),
		removes: make(map[Identifier]struct{}),
	}
}

// Get returns an owned copy of the entity as seen by this batch: staged
// writes and removes first, otherwise the stored value at the time of the
// first read.
func (b *Batch[T]) Get(id Identifier) (T, error) {
	var zero T
	if _, ok := b.removes[id]; ok {
		return zero, fmt.Errorf("%s %q: %w", b.store.name, id, ErrNotFound)
	}
	if v, ok := b.writes[id]; ok {
		return v.Clone(), nil
	}
	if v, ok := b.cache[id]; ok {
		return v.Clone(), nil
	}
	if rev, seen := b.reads[id]; seen && rev == 0 {
		return zero, fmt.Errorf("%s %q: %w", b.store.name, id, ErrNotFound)
	}
	v, rev, err := b.store.getVersioned(id)
	b.reads[id] = rev
	if err != nil {
		return zero, err
	}
	b.cache[id] = v
	return v.Clone(), nil
}

// Put stages e to be stored under e.EntityID().
func (b *Batch[T]) Put(e T) {
	id := e.EntityID()
	delete(b.removes, id)
	b.writes[id] = e.Clone()
}

// Remove stages the removal of the entity stored under id.
func (b *Batch[T]) Remove(id Identifier) {
	delete(b.writes, id)
	b.removes[id] = struct{}{}
}

// Dirty reports whether the batch holds staged writes or removes.
func (b *Batch[T]) Dirty() bool {
	return len(b.writes) > 0 || len(b.removes) > 0
}

func (b *Batch[T]) rank() int { return b.store.rank }
func (b *Batch[T]) lock()     { b.store.mu.Lock() }
func (b *Batch[T]) unlock()   { b.store.mu.Unlock() }

func (b *Batch[T]) validate() error {
	for id, rev := range b.reads {
		if b.store.revision(id) != rev {
			return fmt.Errorf("%s %q: %w", b.store.name, id, ErrConflict)
		}
	}
	return nil
}

func (b *Batch[T]) apply() {
	ids := make([]Identifier, 0, len(b.writes))
	for id := range b.writes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		b.store.put(b.writes[id])
	}
	for id := range b.removes {
		b.store.remove(id)
	}
}

// Committer is a staged change set that can take part in Commit.
// *Batch[T] is the only implementation.
type Committer interface {
	rank() int
	lock()
	unlock()
	validate() error
	apply()
}

// Commit atomically applies every batch, or none of them.
//
// The participating stores are locked in ascending rank order. If any entity
// read by any batch has changed since it was read, nothing is applied and
// an error wrapping ErrConflict is returned.
//
// Precondition: no two batches target the same store.
func Commit(batches ...Committer) error {
	ordered := slices.Clone(batches)
	slices.SortFunc(ordered, func(a, b Committer) int { return a.rank() - b.rank() })
	for _, b := range ordered {
		b.lock()
	}
	defer func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			ordered[i].unlock()
		}
	}()
	for _, b := range ordered {
		if err := b.validate(); err != nil {
			return err
		}
	}
	for _, b := range ordered {
		b.apply()
	}
	return nil
}

// Validate checks, under the same locks Commit takes, that every entity read
// by the batches is still current. Nothing is applied.
func Validate(batches ...Committer) error {
	ordered := slices.Clone(batches)
	slices.SortFunc(ordered, func(a, b Committer) int { return a.rank() - b.rank() })
	for _, b := range ordered {
		b.lock()
	}
	defer func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			ordered[i].unlock()
		}
	}()
	for _, b := range ordered {
		if err := b.validate(); err != nil {
			return err
		}
	}
	return nil
}
