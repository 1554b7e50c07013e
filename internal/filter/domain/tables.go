package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInternerFull is returned once every id of an Interner is in use.
var ErrInternerFull = errors.New("too many distinct values")

// CategoryID is an interned category label; zero means uncategorised.
type CategoryID uint16

// WindowID is an interned time window; zero means always active.
type WindowID uint16

// Interner assigns dense 1-based ids to repeated values so thousands of
// entries sharing a tag store one small integer each.
type Interner[K comparable] struct {
	values []K
	ids    map[K]uint16
}

// NewInterner returns an empty Interner.
func NewInterner[K comparable]() *Interner[K] {
	return &Interner[K]{ids: make(map[K]uint16)}
}

// NewInternerFrom rebuilds an Interner whose ids follow the order of values.
func NewInternerFrom[K comparable](values []K) (*Interner[K], error) {
	in := NewInterner[K]()
	for _, v := range values {
		if _, err := in.Intern(v); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// Intern returns the id of v, assigning the next one on first sight. Id 0 is
// reserved, so at most math.MaxUint16 distinct values fit.
func (in *Interner[K]) Intern(v K) (uint16, error) {
	if id, ok := in.ids[v]; ok {
		return id, nil
	}
	if len(in.values) >= math.MaxUint16 {
		return 0, fmt.Errorf("%w: limit is %d", ErrInternerFull, math.MaxUint16)
	}
	in.values = append(in.values, v)
	id := uint16(len(in.values))
	in.ids[v] = id
	return id, nil
}

// Lookup resolves an id back to its value.
func (in *Interner[K]) Lookup(id uint16) (K, bool) {
	var zero K
	if in == nil || id == 0 || int(id) > len(in.values) {
		return zero, false
	}
	return in.values[id-1], true
}

// Values returns the interned values in id order. Callers must not modify it.
func (in *Interner[K]) Values() []K {
	if in == nil {
		return nil
	}
	return in.values
}

// Len returns the number of distinct values.
func (in *Interner[K]) Len() int {
	if in == nil {
		return 0
	}
	return len(in.values)
}
