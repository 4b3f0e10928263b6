// Package lifecycle provides Cell, the four-state atomic init/shutdown
// primitive the worker pool embeds to refuse Spawn after Destroy. It
// generalizes the single-shot
// sync.Once idiom the teacher project used for its global logger
// (internal/logger's initOnce) into a cell that also supports an aborted
// initialization attempt and a terminal dead state.
package lifecycle

import "sync/atomic"

// State is one of the four lifecycle states a Cell can occupy.
type State int32

const (
	Uninit State = iota
	Initializing
	Initialized
	Dead
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "Uninit"
	case Initializing:
		return "Initializing"
	case Initialized:
		return "Initialized"
	case Dead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// Cell is a single atomic integer state machine: Uninit -> Initializing ->
// Initialized, with a terminal Dead state reachable from any state via
// ShutdownForever. Exactly one caller ever wins the Uninit->Initializing
// race; all others spin briefly on InitOnce until the winner commits or
// aborts.
type Cell struct {
	state atomic.Int32
}

// InitOnce attempts to claim initialization. It returns won=true exactly
// once across the lifetime of the Cell (until a subsequent Abort allows a
// retry). Losing callers block until the state leaves Initializing, then
// return won=false.
func (c *Cell) InitOnce() (won bool) {
	if c.state.CompareAndSwap(int32(Uninit), int32(Initializing)) {
		return true
	}
	for {
		s := State(c.state.Load())
		switch s {
		case Initializing:
			// Cooperative spin; initialization work is expected to be brief
			// (this is a one-time setup path, not a hot loop).
			continue
		default:
			return false
		}
	}
}

// InitCommit marks initialization successful: Initializing -> Initialized.
// Must only be called by the goroutine that won InitOnce.
func (c *Cell) InitCommit() {
	c.state.Store(int32(Initialized))
}

// InitAbort reverts a failed initialization attempt back to Uninit so a
// later caller may retry. Must only be called by the goroutine that won
// InitOnce.
func (c *Cell) InitAbort() {
	c.state.Store(int32(Uninit))
}

// ShutdownForever transitions the Cell to the terminal Dead state and
// reports whether it had previously reached Initialized (i.e. whether real
// teardown work is needed by the caller).
func (c *Cell) ShutdownForever() (wasInitialized bool) {
	prev := State(c.state.Swap(int32(Dead)))
	return prev == Initialized
}

// IsInitialized reports whether the Cell has completed initialization and
// has not since been shut down.
func (c *Cell) IsInitialized() bool {
	return State(c.state.Load()) == Initialized
}

// IsDead reports whether ShutdownForever has been called.
func (c *Cell) IsDead() bool {
	return State(c.state.Load()) == Dead
}

// CurrentState returns the Cell's state for diagnostics/tests.
func (c *Cell) CurrentState() State {
	return State(c.state.Load())
}
