// Package rob provides a minimal stand-in for the out-of-scope re-order
// buffer (spec.md §1 keeps the ROB itself external, exposing only the
// "mark retired" completion hook a Cache calls at L1 of the data
// hierarchy). This implementation counts retirements and records every one
// of them in order, enough to drive and assert against in tests without
// pretending to model instruction issue/retire ordering.
package rob

import "github.com/sarchlab/tlbcoh/request"

// Completion is one retired L1 data access, recorded by Sink.
type Completion struct {
	Addr uint64
	Kind request.Kind
}

// Sink implements cache.RetirementSink: it counts calls to MarkDone and
// keeps the full retirement history, standing in for the ROB's own
// bookkeeping.
type Sink struct {
	history []Completion
	counts  map[uint64]int
}

// NewSink builds an empty retirement sink.
func NewSink() *Sink {
	return &Sink{counts: make(map[uint64]int)}
}

// MarkDone records one retirement. Called exactly once per retired L1 data
// request, per spec.md §6's ROB façade contract.
func (s *Sink) MarkDone(addr uint64, k request.Kind) {
	s.history = append(s.history, Completion{Addr: addr, Kind: k})
	s.counts[addr]++
}

// Count reports how many times addr has retired.
func (s *Sink) Count(addr uint64) int { return s.counts[addr] }

// History returns every retirement recorded so far, in retirement order.
func (s *Sink) History() []Completion { return s.history }

// Total reports the number of retirements recorded so far.
func (s *Sink) Total() int { return len(s.history) }
