// Package rootset keeps the native side of the rooting protocol: the table
// of registered root slots and the set of live cells they keep reachable.
//
// A Set belongs to one native context and is not safe for concurrent use.
package rootset

import (
	"sort"
	"unsafe"

	"github.com/cryguy/jsbridge/internal/core"
)

// Kind says how the contents of a root slot are read.
type Kind uint8

const (
	KindObject Kind = iota + 1
	KindString
	KindScript
	KindValue
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindString:
		return "string"
	case KindScript:
		return "script"
	case KindValue:
		return "value"
	default:
		return "invalid"
	}
}

// DefaultMaxRoots bounds the root table. AddRoot fails once it is full.
const DefaultMaxRoots = 1 << 20

type root struct {
	kind Kind
	name string
}

// Set is a root table plus cell table for one context.
type Set struct {
	roots    map[unsafe.Pointer]root
	cells    map[uint64]struct{}
	maxRoots int

	allocs      int // cells born since the last collection
	collections int
}

// New returns an empty Set. maxRoots <= 0 selects DefaultMaxRoots.
func New(maxRoots int) *Set {
	if maxRoots <= 0 {
		maxRoots = DefaultMaxRoots
	}
	return &Set{
		roots:    make(map[unsafe.Pointer]root),
		cells:    make(map[uint64]struct{}),
		maxRoots: maxRoots,
	}
}

// AddRoot registers the slot at p. The slot must stay at p until it is
// removed; holding p here also keeps the slot's memory alive.
func (s *Set) AddRoot(p unsafe.Pointer, kind Kind, name string) bool {
	if p == nil || kind < KindObject || kind > KindValue {
		return false
	}
	if _, ok := s.roots[p]; !ok && len(s.roots) >= s.maxRoots {
		return false
	}
	s.roots[p] = root{kind: kind, name: name}
	return true
}

// RemoveRoot unregisters the slot at p. It reports false if p was not
// registered.
func (s *Set) RemoveRoot(p unsafe.Pointer) bool {
	if _, ok := s.roots[p]; !ok {
		return false
	}
	delete(s.roots, p)
	return true
}

// IsRooted reports whether p is a registered slot.
func (s *Set) IsRooted(p unsafe.Pointer) bool {
	_, ok := s.roots[p]
	return ok
}

// Roots returns the number of registered slots.
func (s *Set) Roots() int { return len(s.roots) }

// Names returns the names of named roots, sorted.
func (s *Set) Names() []string {
	var names []string
	for _, r := range s.roots {
		if r.name != "" {
			names = append(names, r.name)
		}
	}
	sort.Strings(names)
	return names
}

// Born records a new cell. Recording a known cell is a no-op.
func (s *Set) Born(id uint64) {
	if id == 0 {
		return
	}
	if _, ok := s.cells[id]; ok {
		return
	}
	s.cells[id] = struct{}{}
	s.allocs++
}

// Live reports whether cell id has survived every collection so far.
func (s *Set) Live(id uint64) bool {
	_, ok := s.cells[id]
	return ok
}

// Cells returns the number of live cells.
func (s *Set) Cells() int { return len(s.cells) }

// Allocs returns the number of cells born since the last collection.
func (s *Set) Allocs() int { return s.allocs }

// Collections returns how many times Collect has run.
func (s *Set) Collections() int { return s.collections }

// Collect marks every cell reachable from a registered root or listed in
// extra, frees the rest and returns the freed ids in ascending order.
func (s *Set) Collect(extra []uint64) []uint64 {
	marked := make(map[uint64]struct{}, len(s.roots)+len(extra))
	for p, r := range s.roots {
		if id, ok := read(p, r.kind); ok {
			marked[id] = struct{}{}
		}
	}
	for _, id := range extra {
		if id != 0 {
			marked[id] = struct{}{}
		}
	}

	var freed []uint64
	for id := range s.cells {
		if _, ok := marked[id]; !ok {
			freed = append(freed, id)
			delete(s.cells, id)
		}
	}
	sort.Slice(freed, func(i, j int) bool { return freed[i] < freed[j] })

	s.allocs = 0
	s.collections++
	return freed
}

// Reset drops every root and cell, as when the context is destroyed.
func (s *Set) Reset() {
	clear(s.roots)
	clear(s.cells)
	s.allocs = 0
}

// read extracts the cell id held by the slot at p.
func read(p unsafe.Pointer, kind Kind) (uint64, bool) {
	switch kind {
	case KindObject, KindString, KindScript:
		id := uint64(*(*uintptr)(p))
		return id, id != 0
	case KindValue:
		v := *(*core.Value)(p)
		if !v.IsGCThing() {
			return 0, false
		}
		return v.Payload(), true
	}
	return 0, false
}

// ValueCell returns the cell id carried by v, if any.
func ValueCell(v core.Value) (uint64, bool) {
	if !v.IsGCThing() {
		return 0, false
	}
	return v.Payload(), true
}
