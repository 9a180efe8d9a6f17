package autoindexnode

import (
	"math/rand"
	"runtime"
)

// capabilityRoundTo is the nearest unit a raw capability score is
// rounded to before a small random tail is added to break ties (spec
// §4.6 "rounded to the nearest 100,000 with a small random tail").
const capabilityRoundTo = 100_000

// Capability computes this process's self-reported election suitability
// score: larger is better (spec §4.6). It is derived from available
// heap headroom, the simplest signal this process can read about itself
// without external dependencies.
func Capability() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	available := int64(m.Sys - m.HeapInuse)
	if available < 0 {
		available = 0
	}
	rounded := ((available + capabilityRoundTo/2) / capabilityRoundTo) * capabilityRoundTo
	tail := rand.Int63n(capabilityRoundTo)
	return rounded + tail
}
