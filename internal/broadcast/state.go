// Package broadcast implements the activity broadcaster from spec.md
// §4.9: a websocket session state machine and process-wide activity
// counters, grounded in the teacher's atomic-counter conventions
// (internal/store/stats.go's StatsCollector) and worker-pool bookkeeping
// (internal/eval/tablebase_pool.go's atomic fields). The broadcasting
// session receives its own DotsCalculation echo: the source left this
// open, and this is the simpler of the two permitted behaviors to reason
// about from the client side.
package broadcast

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironinsights/iron-insights/internal/scoring"
)

// Calculation is one entry in the recent-calculations ring buffer.
type Calculation struct {
	Timestamp time.Time
	Sex       string
	LiftType  string
	DOTS      float64
	Level     scoring.Level
}

// ActivityState is the process-wide, mutable state described in
// spec.md §3 "Activity state": atomic counters, a fixed-capacity ring
// buffer of recent calculations, and a server-load estimate.
type ActivityState struct {
	connections       atomic.Int64
	activeSessions    atomic.Int64
	totalCalculations atomic.Int64

	mu       sync.Mutex
	ring     []Calculation
	ringHead int
	ringLen  int

	loadEstimate atomic.Uint64 // bits of a float64, updated on each tick
}

// NewActivityState builds an ActivityState whose ring buffer holds the
// last capacity calculations.
func NewActivityState(capacity int) *ActivityState {
	if capacity <= 0 {
		capacity = 50
	}
	return &ActivityState{ring: make([]Calculation, capacity)}
}

func (a *ActivityState) OnConnect()    { a.connections.Add(1) }
func (a *ActivityState) OnDisconnect() { a.connections.Add(-1) }

func (a *ActivityState) OnSessionLive()   { a.activeSessions.Add(1) }
func (a *ActivityState) OnSessionClosed() { a.activeSessions.Add(-1) }

// RecordCalculation advances the ring buffer with a new calculation and
// bumps the lifetime counter (spec.md §4.9 "broadcast when the ring
// buffer advances").
func (a *ActivityState) RecordCalculation(c Calculation) {
	a.totalCalculations.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ring[a.ringHead] = c
	a.ringHead = (a.ringHead + 1) % len(a.ring)
	if a.ringLen < len(a.ring) {
		a.ringLen++
	}
}

// RecentCalculations returns the ring buffer's contents, oldest first.
func (a *ActivityState) RecentCalculations() []Calculation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Calculation, a.ringLen)
	start := (a.ringHead - a.ringLen + len(a.ring)) % len(a.ring)
	for i := 0; i < a.ringLen; i++ {
		out[i] = a.ring[(start+i)%len(a.ring)]
	}
	return out
}

// Snapshot is the counters published to peers in a StatsUpdate message.
type Snapshot struct {
	Connections       int64
	ActiveSessions    int64
	TotalCalculations int64
	ServerLoad        float64
}

// Snapshot returns the current counter values and load estimate.
func (a *ActivityState) Snapshot() Snapshot {
	return Snapshot{
		Connections:       a.connections.Load(),
		ActiveSessions:    a.activeSessions.Load(),
		TotalCalculations: a.totalCalculations.Load(),
		ServerLoad:        math.Float64frombits(a.loadEstimate.Load()),
	}
}

// UpdateLoadEstimate recomputes the server-load estimate as the active
// session count over softCeiling, clamped to 1; it falls again as
// sessions close.
func (a *ActivityState) UpdateLoadEstimate(softCeiling int64) {
	if softCeiling <= 0 {
		softCeiling = 1
	}
	load := float64(a.activeSessions.Load()) / float64(softCeiling)
	if load > 1 {
		load = 1
	}
	a.loadEstimate.Store(math.Float64bits(load))
}
