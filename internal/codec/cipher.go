package codec

import (
	"encoding/binary"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/alxayo/ascii-chat-go/internal/errors"
)

// NonceLen is chacha20poly1305's standard nonce size.
const NonceLen = chacha20poly1305.NonceSize

// Cipher is the per-connection AEAD context installed once the handshake
// (internal/handshake) has derived a session key via HKDF. Encrypt is
// called from the single transport-send path; Decrypt is called from the
// single ingress-dispatcher goroutine — so the counters never need a mutex,
// only atomics for visibility across the handshake goroutine that installs
// the Cipher and the goroutine that first uses it.
type Cipher struct {
	aead       aeadImpl
	sendCtr    atomic.Uint64
	recvHighWM atomic.Uint64
}

// aeadImpl narrows the stdlib/x-crypto cipher.AEAD interface to what this
// package uses, so tests can substitute a fake.
type aeadImpl interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// NewCipher builds a Cipher from a 32-byte session key derived by the
// handshake package's HKDF step.
func NewCipher(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.NewCryptoError("codec.new_cipher", err)
	}
	return &Cipher{aead: aead}, nil
}

func nonceFor(counter uint64) []byte {
	nonce := make([]byte, NonceLen)
	binary.BigEndian.PutUint64(nonce[NonceLen-8:], counter)
	return nonce
}

// Seal encrypts plaintext under the next nonce counter value and returns
// the counter actually used followed by ciphertext||tag.
func (c *Cipher) Seal(plaintext []byte) (counter uint64, out []byte) {
	counter = c.sendCtr.Add(1)
	nonce := nonceFor(counter)
	return counter, c.aead.Seal(nil, nonce, plaintext, nil)
}

// Open decrypts ciphertext sealed under the given nonce counter. It rejects
// any counter not strictly greater than the highest counter seen so far,
// which is the "nonce reused" fatal condition SPEC_FULL.md §7 calls out.
func (c *Cipher) Open(counter uint64, ciphertext []byte) ([]byte, error) {
	for {
		hw := c.recvHighWM.Load()
		if counter <= hw {
			return nil, errors.NewCryptoError("codec.open", errDecryptFailed)
		}
		if c.recvHighWM.CompareAndSwap(hw, counter) {
			break
		}
	}
	nonce := nonceFor(counter)
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.NewCryptoError("codec.open", errDecryptFailed)
	}
	return plaintext, nil
}
