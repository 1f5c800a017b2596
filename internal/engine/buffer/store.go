// Package buffer provides the sized-or-dynamic backing store shared by the
// bone palette and morph descriptor tables.
package buffer

import (
	"errors"
	"fmt"
)

// Unbounded is the Capacity reported by dynamic stores.
const Unbounded = -1

// Variant names accepted by New.
const (
	VariantFixed   = "fixed"
	VariantDynamic = "dynamic"
)

// ErrCapacity is returned when a fixed store cannot hold the requested items.
var ErrCapacity = errors.New("buffer capacity exceeded")

// CapacityError reports how many items were requested from a fixed store.
type CapacityError struct {
	Name string
	Need int
	Cap  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %d items exceed capacity %d", e.Name, e.Need, e.Cap)
}

// Is makes errors.Is(err, ErrCapacity) match.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacity
}

// Store is an indexed, frame-immutable array. Fixed and dynamic variants are
// interchangeable: consumers only read through Len and At.
type Store[T any] interface {
	// Len is the number of valid items.
	Len() int
	// Capacity is the maximum item count, or Unbounded.
	Capacity() int
	// At returns item i. i must be in [0, Len()).
	At(i int) T
	// Items returns the valid items. Callers must not modify the slice.
	Items() []T
	// Set replaces the contents.
	Set(items []T) error
}

// Fixed is a store with a compile-time style upper bound, mirroring a
// fixed-size uniform array.
type Fixed[T any] struct {
	name  string
	items []T
	n     int
}

// NewFixed allocates a fixed store holding at most capacity items.
func NewFixed[T any](name string, capacity int) *Fixed[T] {
	return &Fixed[T]{name: name, items: make([]T, capacity)}
}

func (f *Fixed[T]) Len() int      { return f.n }
func (f *Fixed[T]) Capacity() int { return len(f.items) }
func (f *Fixed[T]) At(i int) T    { return f.items[:f.n][i] }
func (f *Fixed[T]) Items() []T    { return f.items[:f.n] }

// Set copies items into the store. Slots past len(items) are zeroed so a
// shrinking update never exposes stale entries.
func (f *Fixed[T]) Set(items []T) error {
	if len(items) > len(f.items) {
		return &CapacityError{Name: f.name, Need: len(items), Cap: len(f.items)}
	}
	copy(f.items, items)
	if len(items) < f.n {
		clear(f.items[len(items):f.n])
	}
	f.n = len(items)
	return nil
}

// Dynamic grows to fit whatever it is given.
type Dynamic[T any] struct {
	items []T
}

// NewDynamic returns an empty dynamic store.
func NewDynamic[T any]() *Dynamic[T] {
	return &Dynamic[T]{}
}

func (d *Dynamic[T]) Len() int      { return len(d.items) }
func (d *Dynamic[T]) Capacity() int { return Unbounded }
func (d *Dynamic[T]) At(i int) T    { return d.items[i] }
func (d *Dynamic[T]) Items() []T    { return d.items }

// Set copies items, reusing the backing array when it is large enough.
func (d *Dynamic[T]) Set(items []T) error {
	d.items = append(d.items[:0], items...)
	return nil
}

// New returns a fixed store when variant is "fixed" and a dynamic one otherwise.
func New[T any](name, variant string, capacity int) Store[T] {
	if variant == VariantFixed {
		return NewFixed[T](name, capacity)
	}
	return NewDynamic[T]()
}
