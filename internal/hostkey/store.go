// Package hostkey implements the trust-on-first-use known-hosts store
// described in SPEC_FULL.md §6: a flat line-oriented file of
// "host:port sha256:base64-fingerprint" records. There is no teacher
// equivalent (RTMP has no peer-identity concept), so this package's line
// parsing follows the dependency-free, scanner-based style the teacher
// uses throughout internal/rtmp/chunk for reading fixed-grammar wire
// fields — one small function per concern, errors wrapped with Op context.
package hostkey

import (
	"bufio"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alxayo/ascii-chat-go/internal/errors"
)

// Fingerprint renders a peer's Ed25519 public key as the store's
// "sha256:base64" textual form.
func Fingerprint(peerIdentity []byte) string {
	sum := sha256.Sum256(peerIdentity)
	return "sha256:" + base64.StdEncoding.EncodeToString(sum[:])
}

// Store is an in-memory known-hosts table backed by a flat file. Reads and
// writes are serialized by mu; Verify is only called from the handshake
// goroutine, so contention is not a concern.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]string // "host:port" -> fingerprint
}

// Load reads path into a Store. A missing file is treated as an empty
// store (first connection to any host is always TOFU).
func Load(path string) (*Store, error) {
	s := &Store{path: path, entries: map[string]string{}}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.NewPlatformError("hostkey.load", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, errors.NewProtocolError("hostkey.load", fmt.Errorf("known_hosts:%d: malformed line", line))
		}
		s.entries[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewPlatformError("hostkey.load", err)
	}
	return s, nil
}

// Verify checks peerIdentity's fingerprint against the store's record for
// hostPort. Three outcomes: unknown host (records it and returns nil —
// trust on first use), matching fingerprint (returns nil), mismatched
// fingerprint (returns a HostKey error — the caller must refuse the
// connection per SPEC_FULL.md §4.7).
func (s *Store) Verify(hostPort string, peerIdentity []byte) error {
	want := Fingerprint(peerIdentity)

	s.mu.Lock()
	defer s.mu.Unlock()

	got, known := s.entries[hostPort]
	if !known {
		s.entries[hostPort] = want
		return s.persistLocked()
	}
	if got != want {
		return errors.NewHostKeyError("hostkey.verify", fmt.Errorf("fingerprint mismatch for %s: known %s, got %s", hostPort, got, want))
	}
	return nil
}

// Pinned checks peerIdentity against a single pinned fingerprint
// (config.Snapshot.ServerKey), bypassing TOFU entirely — used when the
// operator has supplied server_key explicitly.
func Pinned(pin string, peerIdentity []byte) error {
	if Fingerprint(peerIdentity) != pin {
		return errors.NewHostKeyError("hostkey.pinned", fmt.Errorf("peer fingerprint does not match pinned server_key"))
	}
	return nil
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.NewPlatformError("hostkey.persist", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for hostPort, fp := range s.entries {
		if _, err := fmt.Fprintf(w, "%s %s\n", hostPort, fp); err != nil {
			return errors.NewPlatformError("hostkey.persist", err)
		}
	}
	return w.Flush()
}
