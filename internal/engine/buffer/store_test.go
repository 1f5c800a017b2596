package buffer

import (
	"errors"
	"testing"
)

func TestFixedCapacity(t *testing.T) {
	s := NewFixed[int]("bones", 3)
	if s.Capacity() != 3 {
		t.Errorf("Capacity() = %d, want 3", s.Capacity())
	}
	if err := s.Set([]int{1, 2, 3}); err != nil {
		t.Fatalf("Set at capacity: %v", err)
	}
	err := s.Set([]int{1, 2, 3, 4})
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("Set over capacity: got %v, want ErrCapacity", err)
	}
	var ce *CapacityError
	if !errors.As(err, &ce) || ce.Need != 4 || ce.Cap != 3 {
		t.Errorf("CapacityError = %+v", ce)
	}
	// A rejected Set leaves the previous contents.
	if s.Len() != 3 || s.At(2) != 3 {
		t.Errorf("contents changed after rejected Set: %v", s.Items())
	}
}

func TestFixedShrinkClearsStale(t *testing.T) {
	s := NewFixed[int]("morphs", 4)
	_ = s.Set([]int{7, 8, 9})
	_ = s.Set([]int{1})
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if s.items[1] != 0 || s.items[2] != 0 {
		t.Errorf("stale slots not cleared: %v", s.items)
	}
}

func TestVariantsSubstitutable(t *testing.T) {
	data := []float32{0.5, -1, 2}
	stores := map[string]Store[float32]{
		"fixed":   New[float32]("w", "fixed", 8),
		"dynamic": New[float32]("w", "dynamic", 8),
	}
	for name, s := range stores {
		if err := s.Set(data); err != nil {
			t.Fatalf("%s: Set: %v", name, err)
		}
		if s.Len() != len(data) {
			t.Errorf("%s: Len() = %d", name, s.Len())
		}
		for i, want := range data {
			if got := s.At(i); got != want {
				t.Errorf("%s: At(%d) = %v, want %v", name, i, got, want)
			}
		}
	}
	if stores["dynamic"].Capacity() != Unbounded {
		t.Errorf("dynamic Capacity() = %d, want Unbounded", stores["dynamic"].Capacity())
	}
}
