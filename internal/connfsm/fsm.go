// Package connfsm implements the connection lifecycle state machine of
// SPEC_FULL.md §4.7, generalizing the teacher's internal/rtmp/handshake
// five-state FSM (Initial/RecvC0C1/SentS0S1S2/RecvC2/Completed, each a
// small int enum with a String method) to the five connection-level states
// IDLE/ATTEMPTING/CONNECTED/DISCONNECTED/FAILED plus an attempt counter and
// reconnect policy.
package connfsm

import (
	"sync"

	"github.com/alxayo/ascii-chat-go/internal/config"
	"github.com/alxayo/ascii-chat-go/internal/metrics"
)

// State is the connection's externally observable lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateConnected
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAttempting:
		return "ATTEMPTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Machine tracks the current state and reconnect-attempt accounting for one
// connection. All transitions are serialized by mu since the FSM is
// observed and driven from both the main goroutine and the ingress
// dispatcher (which reports DISCONNECTED on a read/decode error).
type Machine struct {
	mu       sync.Mutex
	state    State
	attempts int
	failedNonRetryable bool
}

// New creates a Machine in StateIdle.
func New() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AttemptConnect transitions IDLE/DISCONNECTED/FAILED(retryable) ->
// ATTEMPTING. Returns false if the machine is not in a state that permits
// a new attempt (e.g., already ATTEMPTING or a non-retryable FAILED).
func (m *Machine) AttemptConnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateIdle, StateDisconnected:
		m.state = StateAttempting
		m.attempts++
		metrics.ReconnectAttempts.Inc()
		return true
	case StateFailed:
		if m.failedNonRetryable {
			return false
		}
		m.state = StateAttempting
		m.attempts++
		metrics.ReconnectAttempts.Inc()
		return true
	default:
		return false
	}
}

// HandshakeOK transitions ATTEMPTING -> CONNECTED.
func (m *Machine) HandshakeOK() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAttempting {
		m.state = StateConnected
		m.attempts = 0
	}
}

// DialFailed transitions ATTEMPTING -> FAILED (retryable: timeout, refused,
// DNS failure).
func (m *Machine) DialFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateFailed
	m.failedNonRetryable = false
}

// AuthFailed transitions ATTEMPTING -> FAILED (non-retryable: auth or
// known-host mismatch — the caller must exit, not reconnect).
func (m *Machine) AuthFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateFailed
	m.failedNonRetryable = true
}

// Disconnected transitions CONNECTED -> DISCONNECTED (peer closed, write
// error, or decode error observed by the ingress dispatcher).
func (m *Machine) Disconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateConnected {
		m.state = StateDisconnected
	}
}

// NonRetryable reports whether the current FAILED state forbids
// reconnection (auth/host-key failure).
func (m *Machine) NonRetryable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateFailed && m.failedNonRetryable
}

// Attempts returns the number of connection attempts made since the last
// successful HandshakeOK.
func (m *Machine) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// ShouldRetry applies the reconnect_attempts policy from the current config
// snapshot (SPEC_FULL.md §4.7): -1 unlimited, 0 none, N>0 bounded. Snapshot
// mode disables all retry regardless of reconnect_attempts. Attempts()
// already counts the initial AttemptConnect call, so reconnect_attempts=N
// must permit N further calls beyond the first — compare with <=, not <.
func (m *Machine) ShouldRetry(s *config.Snapshot) bool {
	if m.NonRetryable() {
		return false
	}
	if s.SnapshotMode {
		return false
	}
	switch {
	case s.ReconnectAttempts == config.ReconnectUnlimited:
		return true
	case s.ReconnectAttempts == config.ReconnectNone:
		return false
	default:
		return m.Attempts() <= s.ReconnectAttempts
	}
}

// ReconnectDelaySeconds is the fixed inter-attempt sleep SPEC_FULL.md §4.7 calls
// for (no exponential backoff — a single server is the typical topology).
const ReconnectDelaySeconds = 1
