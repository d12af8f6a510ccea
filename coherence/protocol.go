// Package coherence implements the per-line coherence FSM: a five-state
// MOESI-style state machine driven by a (state, kind) pair, returning the
// action the caller must carry out (none, a memory writeback, or a broadcast
// to peer cache hierarchies).
//
// The retrieved original source (original_source/TLB-Coherence-Simulator)
// declares the CoherenceState and CoherenceAction enums this package mirrors
// but never ships a ReplPolicy-style .cpp defining the transition table
// itself, so the table below is this module's own design: a write always
// eventually broadcasts an invalidation to remote copies unless this line
// already has sole ownership (EXCLUSIVE/MODIFIED), and a writeback always
// forces INVALID, flushing to the lower level only when the line was dirty
// enough to need it. Decisions are recorded in DESIGN.md.
package coherence

import "github.com/sarchlab/tlbcoh/request"

type State int

const (
	Invalid State = iota
	Shared
	Exclusive
	Owner
	Modified
)

func (s State) String() string {
	switch s {
	case Invalid:
		return "INVALID"
	case Shared:
		return "SHARED"
	case Exclusive:
		return "EXCLUSIVE"
	case Owner:
		return "OWNER"
	case Modified:
		return "MODIFIED"
	default:
		return "UNKNOWN"
	}
}

type Action int

const (
	None Action = iota
	BroadcastDataRead
	BroadcastDataWrite
	BroadcastTranslationRead
	BroadcastTranslationWrite
	MemoryDataWriteback
	MemoryTranslationWriteback
)

func (a Action) String() string {
	switch a {
	case None:
		return "NONE"
	case BroadcastDataRead:
		return "BROADCAST_DATA_READ"
	case BroadcastDataWrite:
		return "BROADCAST_DATA_WRITE"
	case BroadcastTranslationRead:
		return "BROADCAST_TRANSLATION_READ"
	case BroadcastTranslationWrite:
		return "BROADCAST_TRANSLATION_WRITE"
	case MemoryDataWriteback:
		return "MEMORY_DATA_WRITEBACK"
	case MemoryTranslationWriteback:
		return "MEMORY_TRANSLATION_WRITEBACK"
	default:
		return "UNKNOWN"
	}
}

// IsBroadcast reports whether an action must be queued onto peer CacheSys
// coherence-action lists, as opposed to a memory writeback.
func (a Action) IsBroadcast() bool {
	switch a {
	case BroadcastDataRead, BroadcastDataWrite, BroadcastTranslationRead, BroadcastTranslationWrite:
		return true
	default:
		return false
	}
}

func broadcastAction(domain request.Domain, isWrite bool) Action {
	if domain == request.DomainTranslation {
		if isWrite {
			return BroadcastTranslationWrite
		}
		return BroadcastTranslationRead
	}
	if isWrite {
		return BroadcastDataWrite
	}
	return BroadcastDataRead
}

func writebackAction(domain request.Domain) Action {
	if domain == request.DomainTranslation {
		return MemoryTranslationWriteback
	}
	return MemoryDataWriteback
}

// Protocol is the coherence FSM, embedded by value in a cache line rather
// than held behind a pointer to a polymorphic object.
type Protocol struct {
	state State
}

// NewProtocol returns a protocol starting at INVALID, matching a freshly
// allocated or just-evicted line.
func NewProtocol() Protocol { return Protocol{state: Invalid} }

func (p Protocol) State() State { return p.state }

// ForceState overwrites the state directly, with no transition and no
// action. Package cache does not call it: a newly filled slot gets
// NewProtocol(), and a remote write settles through ReactToBroadcast.
func (p *Protocol) ForceState(s State) { p.state = s }

// Transition drives the FSM with the kind of the access that just hit (or
// was just installed) on this line, mutating state in place and returning
// the coherence action the caller must carry out.
//
// Reads never broadcast: a read moves an INVALID line to EXCLUSIVE and
// leaves any other state unchanged, so no remote copy is evicted or asked
// to supply or flush its data. Writes always invalidate remote copies
// unless this line is already the sole owner (EXCLUSIVE or MODIFIED).
// Writebacks always force INVALID and, if the line was dirty enough to be
// writeback-worthy, flush to the lower level.
func (p *Protocol) Transition(k request.Kind) Action {
	switch k.Op {
	case request.OpRead:
		return p.transitionRead(k.Domain)
	case request.OpWrite:
		return p.transitionWrite(k.Domain)
	case request.OpWriteback:
		return p.transitionWriteback(k.Domain)
	default:
		panic("coherence: Transition called with a non-access kind " + k.String())
	}
}

func (p *Protocol) transitionRead(domain request.Domain) Action {
	switch p.state {
	case Invalid:
		p.state = Exclusive
		return None
	case Shared, Exclusive, Owner, Modified:
		return None
	default:
		panic("coherence: unreachable state in transitionRead")
	}
}

func (p *Protocol) transitionWrite(domain request.Domain) Action {
	switch p.state {
	case Invalid:
		p.state = Modified
		return broadcastAction(domain, true)
	case Shared:
		p.state = Modified
		return broadcastAction(domain, true)
	case Owner:
		p.state = Modified
		return broadcastAction(domain, true)
	case Exclusive, Modified:
		p.state = Modified
		return None
	default:
		panic("coherence: unreachable state in transitionWrite")
	}
}

func (p *Protocol) transitionWriteback(domain request.Domain) Action {
	dirtyEnough := p.state == Modified || p.state == Owner
	p.state = Invalid
	if dirtyEnough {
		return writebackAction(domain)
	}
	return None
}

// ReactToBroadcast applies a coherence action received from a peer cache
// hierarchy to a locally resident copy of the same line, returning the kind
// the action concerns (so the caller can assert the resulting state settled
// at INVALID for a directory write, per spec.md §4.6).
//
// This is deliberately not the same state transition a local access drives
// (Transition): a local write claims sole ownership (-> MODIFIED), while a
// remote core's write broadcast means this copy must give up its own
// ownership (-> INVALID). A remote read broadcast moves any valid copy
// (SHARED, EXCLUSIVE, OWNER or MODIFIED) to SHARED; it never invalidates.
func (p *Protocol) ReactToBroadcast(a Action) request.Kind {
	k := KindForAction(a)
	switch k.Op {
	case request.OpWrite:
		p.state = Invalid
	case request.OpRead:
		if p.state != Invalid {
			p.state = Shared
		}
	}
	return k
}

// KindForAction recovers the (op, domain) pair that corresponds to a
// coherence action, used both to react to a broadcast received from a peer
// and to recurse into a lower cache for a memory writeback.
func KindForAction(a Action) request.Kind {
	switch a {
	case MemoryDataWriteback:
		return request.DataWriteback
	case MemoryTranslationWriteback:
		return request.TranslationWriteback
	case BroadcastDataRead:
		return request.DataRead
	case BroadcastDataWrite:
		return request.DataWrite
	case BroadcastTranslationRead:
		return request.TranslationRead
	case BroadcastTranslationWrite:
		return request.TranslationWrite
	default:
		panic("coherence: KindForAction called with NONE")
	}
}
