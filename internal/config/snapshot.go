// Package config implements the RCU-published configuration snapshot
// described in SPEC_FULL.md §4.3: get() is a single atomic acquire-load
// that never returns null, and writers serialize under a mutex, copy the
// current snapshot, apply one field mutation, and publish the new pointer
// with release semantics. The teacher project has no equivalent (RTMP
// server config was a plain struct built once at startup); this package
// generalizes the atomic-pointer idiom the teacher's logger package uses
// for its runtime-adjustable level (internal/logger's atomicLevel) from a
// single int64 to a whole immutable record.
package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ReconnectPolicy encodes SPEC_FULL.md §4.7's reconnect_attempts semantics.
type ReconnectPolicy int

const (
	ReconnectUnlimited ReconnectPolicy = -1
	ReconnectNone       ReconnectPolicy = 0
)

// Snapshot is the immutable, plain-old-data record carrying every tunable
// knob the core consumes (SPEC_FULL.md §3, §6). Once published, a Snapshot
// value is never mutated; updates always produce a new Snapshot.
type Snapshot struct {
	Address string
	Port    int

	Width, Height int
	MaxFPS        int
	FPSLimit      int

	AudioEnabled     bool
	OpusBitrate      int
	CompressionLevel int

	EncryptEnabled bool
	ServerKey      string

	ReconnectAttempts int // -1 unlimited, 0 none, N>0 bounded

	SnapshotMode  bool
	SnapshotDelay int // seconds

	PlaybackGain float64 // linear gain applied before the device sink, default 1.0
}

// fallback is returned by Get before Init and after Shutdown so callers
// never observe a null snapshot, per §3's invariant.
var fallback = &Snapshot{
	Address:           "127.0.0.1",
	Port:              8080,
	Width:             80,
	Height:            24,
	MaxFPS:            30,
	FPSLimit:          30,
	OpusBitrate:       128_000,
	CompressionLevel:  3,
	ReconnectAttempts: -1,
	PlaybackGain:      1.0,
}

var current atomic.Pointer[Snapshot]

var writeMu sync.Mutex

// Init publishes the first snapshot. Safe to call more than once; each call
// replaces the published snapshot (callers typically call this exactly once
// at startup with the result of parsing CLI flags / a config file).
func Init(s *Snapshot) {
	cp := *s
	current.Store(&cp)
}

// Shutdown clears the published snapshot so subsequent Get calls observe
// the static fallback again, per §3.
func Shutdown() {
	current.Store(nil)
}

// Get returns the currently published snapshot. Lock-free: a single atomic
// load. Never returns nil.
func Get() *Snapshot {
	if s := current.Load(); s != nil {
		return s
	}
	return fallback
}

// fieldSetters is the dispatch table keyed on field identity, mirroring the
// teacher's flag-registration style (cmd/rtmp-server/flags.go's one
// fs.XxxVar call per field) generalized to runtime mutation instead of
// parse-time binding.
var fieldSetters = map[string]func(*Snapshot, string) error{
	"address": func(s *Snapshot, v string) error { s.Address = v; return nil },
	"server_key": func(s *Snapshot, v string) error { s.ServerKey = v; return nil },
}

// SetString applies a string-valued field mutation: copy-on-write the
// current snapshot, apply the named field, publish.
func SetString(name, value string) error {
	setter, ok := fieldSetters[name]
	if !ok {
		return fmt.Errorf("config: unknown string field %q", name)
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	next := *Get()
	if err := setter(&next, value); err != nil {
		return err
	}
	current.Store(&next)
	return nil
}

// SetInt applies an int-valued field mutation by name.
func SetInt(name string, value int) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	next := *Get()
	switch name {
	case "port":
		next.Port = value
	case "width":
		next.Width = value
	case "height":
		next.Height = value
	case "max_fps":
		next.MaxFPS = value
	case "fps_limit":
		next.FPSLimit = value
	case "opus_bitrate":
		next.OpusBitrate = value
	case "compression_level":
		next.CompressionLevel = value
	case "reconnect_attempts":
		next.ReconnectAttempts = value
	case "snapshot_delay":
		next.SnapshotDelay = value
	default:
		return fmt.Errorf("config: unknown int field %q", name)
	}
	current.Store(&next)
	return nil
}

// SetDouble applies a float64-valued field mutation by name.
func SetDouble(name string, value float64) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	next := *Get()
	switch name {
	case "playback_gain":
		next.PlaybackGain = value
	default:
		return fmt.Errorf("config: unknown double field %q", name)
	}
	current.Store(&next)
	return nil
}

// SetBool applies a bool-valued field mutation by name.
func SetBool(name string, value bool) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	next := *Get()
	switch name {
	case "audio_enabled":
		next.AudioEnabled = value
	case "encrypt_enabled":
		next.EncryptEnabled = value
	case "snapshot_mode":
		next.SnapshotMode = value
	default:
		return fmt.Errorf("config: unknown bool field %q", name)
	}
	current.Store(&next)
	return nil
}
