package handshake

import (
	"io"
	"net"
	"time"

	"github.com/alxayo/ascii-chat-go/internal/errors"
)

// StepTimeout bounds each individual read/write of the handshake, mirroring
// the teacher's per-phase 5s deadlines in internal/rtmp/handshake/server.go
// scaled down to a 3s budget. No deadline covers the handshake as a whole:
// its total duration is bounded only by these per-step deadlines.
const StepTimeout = 3 * time.Second

func setReadDeadline(c net.Conn, d time.Duration) error {
	if err := c.SetReadDeadline(time.Now().Add(d)); err != nil {
		return errors.NewNetworkError("handshake.set_read_deadline", err)
	}
	return nil
}

func setWriteDeadline(c net.Conn, d time.Duration) error {
	if err := c.SetWriteDeadline(time.Now().Add(d)); err != nil {
		return errors.NewNetworkError("handshake.set_write_deadline", err)
	}
	return nil
}

func writeFull(w io.Writer, b []byte) error {
	off := 0
	for off < len(b) {
		n, err := w.Write(b[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	return err
}

func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	type to interface{ Timeout() bool }
	ne, ok := err.(to)
	return ok && ne.Timeout()
}
