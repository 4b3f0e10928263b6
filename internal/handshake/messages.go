package handshake

// Fixed-size wire messages for the four-step exchange in SPEC_FULL.md §4.5.
// Every field is a fixed-length byte array (no varints, no length prefixes)
// in the same spirit as the teacher's C0/C1/S0/S1/S2 fixed 1536-byte blocks.

// clientHello is step 1: the client's ephemeral X25519 public key plus its
// long-term Ed25519 identity public key (all-zero if unconfigured).
type clientHello struct {
	ephemeral [x25519KeyLen]byte
	identity  [ed25519KeyLen]byte
}

func (m clientHello) marshal() []byte {
	buf := make([]byte, x25519KeyLen+ed25519KeyLen)
	copy(buf[:x25519KeyLen], m.ephemeral[:])
	copy(buf[x25519KeyLen:], m.identity[:])
	return buf
}

func unmarshalClientHello(b []byte) clientHello {
	var m clientHello
	copy(m.ephemeral[:], b[:x25519KeyLen])
	copy(m.identity[:], b[x25519KeyLen:x25519KeyLen+ed25519KeyLen])
	return m
}

const clientHelloLen = x25519KeyLen + ed25519KeyLen

// serverHello is step 2: the server's ephemeral X25519 key, its long-term
// Ed25519 identity, a signature over the transcript so far, and a random
// challenge the client must sign back in step 3.
type serverHello struct {
	ephemeral [x25519KeyLen]byte
	identity  [ed25519KeyLen]byte
	signature [ed25519SigLen]byte
	challenge [challengeLen]byte
}

func (m serverHello) marshal() []byte {
	buf := make([]byte, x25519KeyLen+ed25519KeyLen+ed25519SigLen+challengeLen)
	off := 0
	copy(buf[off:], m.ephemeral[:])
	off += x25519KeyLen
	copy(buf[off:], m.identity[:])
	off += ed25519KeyLen
	copy(buf[off:], m.signature[:])
	off += ed25519SigLen
	copy(buf[off:], m.challenge[:])
	return buf
}

func unmarshalServerHello(b []byte) serverHello {
	var m serverHello
	off := 0
	copy(m.ephemeral[:], b[off:off+x25519KeyLen])
	off += x25519KeyLen
	copy(m.identity[:], b[off:off+ed25519KeyLen])
	off += ed25519KeyLen
	copy(m.signature[:], b[off:off+ed25519SigLen])
	off += ed25519SigLen
	copy(m.challenge[:], b[off:off+challengeLen])
	return m
}

const serverHelloLen = x25519KeyLen + ed25519KeyLen + ed25519SigLen + challengeLen

// clientResponse is step 3: the client's signature over the server's
// challenge (all-zero if the client has no identity configured — an
// anonymous client, which the server may accept or reject by policy).
type clientResponse struct {
	signature [ed25519SigLen]byte
}

func (m clientResponse) marshal() []byte {
	buf := make([]byte, ed25519SigLen)
	copy(buf, m.signature[:])
	return buf
}

func unmarshalClientResponse(b []byte) clientResponse {
	var m clientResponse
	copy(m.signature[:], b[:ed25519SigLen])
	return m
}

const clientResponseLen = ed25519SigLen
