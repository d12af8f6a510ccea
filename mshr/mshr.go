// Package mshr implements the Miss Status Handling Register table: a
// capacity-bounded map from address to the in-flight line occupying it.
//
// Grounded in the teacher's mem/cache/internal/mshr/mshr.go, adapted from an
// entry holding a slice of merged in-flight requests to one matching
// spec.md's single-owner-per-address invariant: at most one MSHR entry
// exists per address, and it carries an index (set, way) into the owning
// cache's storage rather than a request list, since this simulator resolves
// MSHR matches by re-running lookupAndFillCache rather than merging waiters.
package mshr

import "fmt"

// Entry is one outstanding miss: which (set, way) its allocated line lives
// in. It does not record the kind of the access that allocated it.
type Entry struct {
	SetIndex int
	Way      int
}

// Table is a capacity-bounded address -> Entry map.
type Table struct {
	capacity int
	entries  map[uint64]*Entry
}

// New builds an empty table with the given capacity (16 for data caches, 1
// for TLBs, per spec.md §4.3).
func New(capacity int) *Table {
	return &Table{capacity: capacity, entries: make(map[uint64]*Entry)}
}

func (t *Table) Lookup(addr uint64) (*Entry, bool) {
	e, ok := t.entries[addr]
	return e, ok
}

func (t *Table) Len() int { return len(t.entries) }

func (t *Table) IsFull() bool { return len(t.entries) >= t.capacity }

// Add registers a new outstanding miss. It panics on a duplicate address or
// over-capacity add: callers must check IsFull and Lookup first, since both
// are meaningful, non-fatal outcomes the caller handles before reaching
// here (REQUEST_RETRY and the MSHR-hit path respectively).
func (t *Table) Add(addr uint64, e *Entry) {
	if _, ok := t.entries[addr]; ok {
		panic(fmt.Sprintf("mshr: duplicate entry for address %#x", addr))
	}
	if t.IsFull() {
		panic(fmt.Sprintf("mshr: add of address %#x over capacity %d", addr, t.capacity))
	}
	t.entries[addr] = e
}

func (t *Table) Remove(addr uint64) {
	if _, ok := t.entries[addr]; !ok {
		panic(fmt.Sprintf("mshr: remove of absent address %#x", addr))
	}
	delete(t.entries, addr)
}
