// Package dispatch implements the ingress dispatcher of SPEC_FULL.md §4.8:
// a single reader loop that frames one envelope at a time off the
// transport, decodes it, and routes it to a type-keyed handler table.
// Grounded on the teacher's internal/rtmp/rpc.Dispatcher, which holds one
// exported handler field per AMF0 command name (OnConnect, OnPublish, ...)
// and a Dispatch method that decodes and branches on command name; this
// generalizes that shape from command names to the packet types in
// SPEC_FULL.md §4.8.
package dispatch

import (
	"context"

	charmlog "github.com/charmbracelet/log"

	"github.com/alxayo/ascii-chat-go/internal/bufpool"
	"github.com/alxayo/ascii-chat-go/internal/codec"
	"github.com/alxayo/ascii-chat-go/internal/connfsm"
	"github.com/alxayo/ascii-chat-go/internal/errors"
	"github.com/alxayo/ascii-chat-go/internal/logger"
	"github.com/alxayo/ascii-chat-go/internal/transport"
)

// Handler processes one decoded envelope. Handlers run synchronously on
// the dispatcher goroutine and must not block on anything the dispatcher
// itself owns.
type Handler func(env codec.Envelope) error

// ProtocolErrorThreshold is the number of consecutive CRC/bad-magic/
// bad-inner-type errors tolerated before the connection is torn down
// (SPEC_FULL.md §7).
const ProtocolErrorThreshold = 8

// Dispatcher owns the type-keyed handler table and the single reader loop.
// It is the only place in the client that converts network byte order to
// host order (via codec.Decode).
type Dispatcher struct {
	OnASCIIFrame         Handler
	OnAudioOpus          Handler
	OnAudioOpusBatch     Handler
	OnServerState        Handler
	OnPing               Handler
	OnPong               Handler
	OnClearConsole       Handler
	OnErrorMessage       Handler
	OnRemoteLog          Handler
	OnStreamStart        Handler
	OnStreamStop         Handler
	OnClientCapabilities Handler
	OnCryptoRekeyRequest Handler
	OnCryptoRekeyResponse Handler
	OnCryptoRekeyComplete Handler

	tr  transport.Transport
	fsm *connfsm.Machine

	consecutiveProtocolErrors int
}

// New builds a Dispatcher bound to tr and fsm. fsm.Disconnected is called
// on any fatal-for-the-connection error observed while running.
func New(tr transport.Transport, fsm *connfsm.Machine) *Dispatcher {
	return &Dispatcher{tr: tr, fsm: fsm}
}

// Run reads and dispatches envelopes until ctx is cancelled or a fatal
// error tears down the connection. cmd/chat-client calls it on
// connectAndServe's own goroutine. ctx is checked between envelopes only:
// a read already blocked in RecvExact is not interrupted by cancellation.
func (d *Dispatcher) Run(ctx context.Context) {
	log := logger.Logger().With("component", "dispatch")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, err := d.readOne()
		if err != nil {
			if d.handleError(log, err) {
				return
			}
			continue
		}
		d.consecutiveProtocolErrors = 0

		if err := d.route(env); err != nil {
			log.Warn("handler returned error", "type", env.Type, "error", err)
		}
	}
}

// readOne frames and decodes one envelope, drawing its receive buffers from
// internal/bufpool rather than allocating fresh slices per read — the
// envelope body is copied into a final contiguous buffer immediately, so
// both pool buffers are returned before this function returns.
func (d *Dispatcher) readOne() (codec.Envelope, error) {
	headerBuf := bufpool.Get(codec.HeaderLen)
	defer bufpool.Put(headerBuf)
	if err := d.tr.RecvExact(headerBuf.Bytes()); err != nil {
		return codec.Envelope{}, err
	}
	length, err := codec.ParseHeader(headerBuf.Bytes())
	if err != nil {
		return codec.Envelope{}, err
	}

	raw := make([]byte, codec.HeaderLen+int(length))
	copy(raw, headerBuf.Bytes())
	if length > 0 {
		restBuf := bufpool.Get(int(length))
		err := d.tr.RecvExact(restBuf.Bytes())
		if err == nil {
			copy(raw[codec.HeaderLen:], restBuf.Bytes())
		}
		bufpool.Put(restBuf)
		if err != nil {
			return codec.Envelope{}, err
		}
	}
	return codec.Decode(raw, d.tr.Cipher())
}

// handleError applies SPEC_FULL.md §7's recovery policy by error kind,
// returning true if the dispatcher loop must stop.
func (d *Dispatcher) handleError(log *charmlog.Logger, err error) bool {
	kind, ok := errors.KindOf(err)
	if !ok {
		log.Warn("dispatch read failed", "error", err)
		d.fsm.Disconnected()
		return true
	}
	switch kind {
	case errors.Network:
		log.Warn("transport read failed, connection lost", "error", err)
		d.fsm.Disconnected()
		return true
	case errors.Crypto:
		log.Warn("decrypt failed, tearing down connection", "error", err)
		d.fsm.Disconnected()
		return true
	case errors.CryptoAuth, errors.HostKey:
		log.Warn("fatal authentication error", "error", err)
		d.fsm.Disconnected()
		return true
	case errors.Compression, errors.Protocol:
		d.consecutiveProtocolErrors++
		log.Warn("dropping malformed envelope", "error", err, "consecutive", d.consecutiveProtocolErrors)
		if d.consecutiveProtocolErrors >= ProtocolErrorThreshold {
			d.fsm.Disconnected()
			return true
		}
		return false
	default:
		log.Warn("dispatch error", "error", err)
		d.fsm.Disconnected()
		return true
	}
}

func (d *Dispatcher) route(env codec.Envelope) error {
	switch env.Type {
	case codec.TypeASCIIFrame:
		return d.dispatch(d.OnASCIIFrame, env)
	case codec.TypeAudioOpus:
		return d.dispatch(d.OnAudioOpus, env)
	case codec.TypeAudioOpusBatch:
		return d.dispatch(d.OnAudioOpusBatch, env)
	case codec.TypeServerState:
		return d.dispatch(d.OnServerState, env)
	case codec.TypePing:
		return d.dispatch(d.OnPing, env)
	case codec.TypePong:
		return d.dispatch(d.OnPong, env)
	case codec.TypeClearConsole:
		return d.dispatch(d.OnClearConsole, env)
	case codec.TypeErrorMessage:
		return d.dispatch(d.OnErrorMessage, env)
	case codec.TypeRemoteLog:
		return d.dispatch(d.OnRemoteLog, env)
	case codec.TypeStreamStart:
		return d.dispatch(d.OnStreamStart, env)
	case codec.TypeStreamStop:
		return d.dispatch(d.OnStreamStop, env)
	case codec.TypeClientCapabilities:
		return d.dispatch(d.OnClientCapabilities, env)
	case codec.TypeCryptoRekeyRequest:
		return d.dispatch(d.OnCryptoRekeyRequest, env)
	case codec.TypeCryptoRekeyResponse:
		return d.dispatch(d.OnCryptoRekeyResponse, env)
	case codec.TypeCryptoRekeyComplete:
		return d.dispatch(d.OnCryptoRekeyComplete, env)
	default:
		logger.Warn("unknown packet type, skipping", "type", env.Type)
		return nil
	}
}

func (d *Dispatcher) dispatch(h Handler, env codec.Envelope) error {
	if h == nil {
		return nil
	}
	return h(env)
}
