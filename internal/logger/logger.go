// Package logger provides the client's structured logger: a single global
// instance with a runtime-adjustable level, built on charmbracelet/log so
// that terminal output (this is, after all, a terminal application) renders
// with the same readable, colorized key=value style users expect from a
// interactive CLI rather than raw JSON.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

const envLogLevel = "ASCII_CHAT_LOG_LEVEL"

var (
	global     *charmlog.Logger
	initOnce   sync.Once
	globalMu   sync.RWMutex
	rateLimits = newRateLimiter()
)

// Init initializes the global logger. Safe to call multiple times; only the
// first call creates the logger, subsequent calls are no-ops (SetLevel and
// UseWriter mutate state intentionally after Init).
func Init() {
	initOnce.Do(func() {
		l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			Level:           detectLevel(),
			ReportTimestamp: true,
			ReportCaller:    false,
		})
		globalMu.Lock()
		global = l
		globalMu.Unlock()
	})
}

func detectLevel() charmlog.Level {
	if env := os.Getenv(envLogLevel); env != "" {
		if lvl, ok := parseLevel(env); ok {
			return lvl
		}
	}
	return charmlog.InfoLevel
}

func parseLevel(s string) (charmlog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return charmlog.DebugLevel, true
	case "info", "":
		return charmlog.InfoLevel, true
	case "warn", "warning":
		return charmlog.WarnLevel, true
	case "error", "err":
		return charmlog.ErrorLevel, true
	case "fatal":
		return charmlog.FatalLevel, true
	}
	return 0, false
}

// SetLevel changes the runtime log level. Returns an error for unrecognized
// level strings (caller should fall back to the previous level, not abort).
func SetLevel(level string) error {
	Init()
	lvl, ok := parseLevel(level)
	if !ok {
		return &invalidLevelError{level}
	}
	globalMu.Lock()
	global.SetLevel(lvl)
	globalMu.Unlock()
	return nil
}

type invalidLevelError struct{ level string }

func (e *invalidLevelError) Error() string { return "invalid log level: " + e.level }

// Level returns the current runtime level as a string.
func Level() string {
	Init()
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global.GetLevel().String()
}

// UseWriter swaps the output writer, retaining the current level. Intended
// for tests that want to capture log output.
func UseWriter(w io.Writer) {
	Init()
	globalMu.Lock()
	defer globalMu.Unlock()
	lvl := global.GetLevel()
	global = charmlog.NewWithOptions(w, charmlog.Options{Level: lvl, ReportTimestamp: true})
}

// Logger returns the global logger, ensuring Init has run.
func Logger() *charmlog.Logger {
	Init()
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

// WithPeer attaches peer connection identity fields.
func WithPeer(l *charmlog.Logger, connID, peerAddr string) *charmlog.Logger {
	return l.With("conn_id", connID, "peer_addr", peerAddr)
}

// WithStream attaches stream/media context fields.
func WithStream(l *charmlog.Logger, streamType string, seq uint64) *charmlog.Logger {
	return l.With("stream", streamType, "seq", seq)
}

// WarnRateLimited logs a warning for key in a burst of up to three, then at
// most one per second, per SPEC_FULL.md §7's rate-limited non-fatal logging requirement. key
// should identify the error site (e.g. "sendqueue.drop", "codec.crc").
func WarnRateLimited(key string, msg string, args ...any) {
	if rateLimits.Allow(key) {
		Logger().Warn(msg, args...)
	}
}
