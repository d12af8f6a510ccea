package instrument

import "log"

// LogHook is a Hook that records simulation activity, adapted from
// sim/loghook.go's LogHookBase.
type LogHook struct {
	*log.Logger
}

// NewLogHook wraps an existing logger as a Hook.
func NewLogHook(l *log.Logger) *LogHook {
	return &LogHook{Logger: l}
}

func (h *LogHook) Func(ctx HookCtx) {
	h.Printf("[%s] %v", ctx.Pos.Name, ctx.Detail)
}
