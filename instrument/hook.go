// Package instrument adapts the teacher's sim.Hookable/HookableBase/HookCtx
// pattern (sim/hook.go) into the attachment point statistics-printing and
// tracing collaborators use: Cache and CacheSys never format or print
// anything themselves, they only invoke hooks at the positions below.
package instrument

// HookPos enumerates the points in the lookup/fill/eviction/coherence state
// machine where a hook may be invoked.
type HookPos struct {
	Name string
}

var (
	PosHit        = &HookPos{Name: "Hit"}
	PosMiss       = &HookPos{Name: "Miss"}
	PosMSHRHit    = &HookPos{Name: "MSHRHit"}
	PosRetry      = &HookPos{Name: "Retry"}
	PosEvict      = &HookPos{Name: "Evict"}
	PosInvalidate = &HookPos{Name: "Invalidate"}
	PosCoherence  = &HookPos{Name: "Coherence"}
	PosRetire     = &HookPos{Name: "Retire"}
)

// HookCtx carries everything a hook needs to react to one firing.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable is implemented by anything that can accept hooks.
type Hookable interface {
	AcceptHook(hook Hook)
}

// Hook is invoked by a Hookable at each HookPos it fires.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase is embedded by Cache and CacheSys to satisfy Hookable.
type HookableBase struct {
	Hooks []Hook
}

func NewHookableBase() *HookableBase {
	return &HookableBase{Hooks: make([]Hook, 0)}
}

func (h *HookableBase) AcceptHook(hook Hook) {
	h.Hooks = append(h.Hooks, hook)
}

func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}
