// Package connection implements the per-socket connection actor: one
// goroutine owns the receive loop and decrypt/dispatch pipeline, a
// second drains a send queue onto the socket, and a small state machine
// (Session.State) records the stage of the handshake. RequireInWorld
// checks that stage; the receive loop itself dispatches every registered
// opcode whatever the session's state.
package connection

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/wildstar-worldd/internal/codec"
	"github.com/udisondev/wildstar-worldd/internal/opcode"
	"github.com/udisondev/wildstar-worldd/internal/wscipher"
)

// Type tags which of the three cooperating servers this socket belongs
// to; each accepts a different opcode subset.
type Type int

const (
	TypeAuth Type = iota
	TypeRealm
	TypeWorld
)

// State is where a connection sits in the handshake state machine.
type State int32

const (
	Unauthenticated State = iota
	Authenticated
	InWorld
)

// ErrProtocolViolation is returned when a handler or middleware stage
// rejects a packet because the connection's state forbids it.
var ErrProtocolViolation = errors.New("connection: protocol violation")

const (
	defaultSendQueueSize = 128
	defaultWriteTimeout  = 5 * time.Second
	defaultReadBufSize   = 4096
)

// Session is the mutable per-connection record handlers read and
// rewrite. EntityGUID is unset (zero) until the connection enters world.
type Session struct {
	AccountID   uint32
	AccountName string
	EntityGUID  uint64
	state       atomic.Int32
}

// State returns the session's current handshake state.
func (s *Session) State() State { return State(s.state.Load()) }

// SetState transitions the session to v.
func (s *Session) SetState(v State) { s.state.Store(int32(v)) }

// HandlerResult is what an opcode handler (or middleware stage) returns:
// outbound packets to send, and optionally a disconnect instruction.
type HandlerResult struct {
	Outbound   []OutboundPacket
	Disconnect bool
	Reason     string
}

// OutboundPacket is one opcode/payload pair queued for send.
type OutboundPacket struct {
	Opcode  uint16
	Payload []byte
}

// Conn is one logical connection actor.
type Conn struct {
	socket  net.Conn
	connTyp Type
	reg     *opcode.Registry
	cipher  *wscipher.SessionCipher // nil until the handshake enables encryption
	session *Session

	log *slog.Logger

	sendCh       chan OutboundPacket
	closeCh      chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

// New creates a Conn wrapping socket. The cipher may be nil; it is
// installed later via EnableEncryption once a handshake negotiates keys.
func New(socket net.Conn, typ Type, reg *opcode.Registry, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	return &Conn{
		socket:       socket,
		connTyp:      typ,
		reg:          reg,
		session:      &Session{},
		log:          log,
		sendCh:       make(chan OutboundPacket, defaultSendQueueSize),
		closeCh:      make(chan struct{}),
		writeTimeout: defaultWriteTimeout,
	}
}

// Session returns the connection's session record.
func (c *Conn) Session() *Session { return c.session }

// EnableEncryption installs cipher, activating it for all subsequent
// sends/receives.
func (c *Conn) EnableEncryption(cipher *wscipher.SessionCipher) {
	c.cipher = cipher
}

// Enqueue queues an outbound packet for the send loop. Safe to call
// from any goroutine (e.g. a zone broadcasting into this connection).
func (c *Conn) Enqueue(p OutboundPacket) {
	select {
	case c.sendCh <- p:
	case <-c.closeCh:
	}
}

// Close closes the underlying socket and stops the send loop. Safe to
// call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.socket.Close()
	})
}

// RunSendLoop drains the send queue onto the socket, one packet at a
// time, so writes are never interleaved across goroutines.
func (c *Conn) RunSendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		case p := <-c.sendCh:
			if err := c.writeOne(p); err != nil {
				c.log.Warn("write failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) writeOne(p OutboundPacket) error {
	payload := p.Payload
	if c.cipher != nil {
		payload = append([]byte(nil), payload...)
		c.cipher.Encrypt(payload)
	}
	frame := codec.EncodeFrame(p.Opcode, payload)
	c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	_, err := c.socket.Write(frame)
	return err
}

// RunReceiveLoop reads bytes off the socket, decodes frames, and
// dispatches each to its registered handler until the connection closes
// or ctx is cancelled.
func (c *Conn) RunReceiveLoop(ctx context.Context) {
	defer c.Close()

	reader := bufio.NewReaderSize(c.socket, defaultReadBufSize)
	var accum []byte
	chunk := make([]byte, defaultReadBufSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		default:
		}

		n, err := reader.Read(chunk)
		if n > 0 {
			accum = append(accum, chunk[:n]...)
			frames, remainder, decErr := codec.DecodeFrames(accum)
			if decErr != nil {
				c.log.Warn("frame decode failed", "error", decErr)
				return
			}
			accum = append([]byte(nil), remainder...)

			for _, f := range frames {
				if c.handleFrame(f) {
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Debug("read error", "error", err)
			}
			return
		}
	}
}

// handleFrame dispatches one decoded frame and reports whether the
// connection should now close.
func (c *Conn) handleFrame(f codec.Frame) bool {
	payload := f.Payload
	if c.cipher != nil {
		payload = append([]byte(nil), payload...)
		c.cipher.Decrypt(payload)
	}

	name, ok := c.reg.FromInt(f.Opcode)
	if !ok {
		c.log.Debug("unknown opcode", "opcode", f.Opcode)
		unknownOpcodeCount.Add(1)
		return false
	}

	handler, ok := c.reg.Lookup(name)
	if !ok || handler == nil {
		c.log.Debug("opcode registered but no handler bound", "opcode", name)
		unknownOpcodeCount.Add(1)
		return false
	}

	res, err := handler(c.session, payload)
	if err != nil {
		c.log.Warn("handler error", "opcode", name, "error", err)
		return false
	}
	hr, ok := res.(HandlerResult)
	if !ok {
		return false
	}
	for _, o := range hr.Outbound {
		c.Enqueue(o)
	}
	if hr.Disconnect {
		c.log.Info("handler requested disconnect", "opcode", name, "reason", hr.Reason)
		return true
	}
	return false
}

// unknownOpcodeCount is the process-wide counter of frames whose opcode
// had no registered mapping; unknown opcodes are logged and skipped,
// never fatal to the connection.
var unknownOpcodeCount atomic.Int64

// UnknownOpcodeCount returns the current unknown-opcode counter value.
func UnknownOpcodeCount() int64 { return unknownOpcodeCount.Load() }

// RequireInWorld is a middleware stage rejecting any packet unless the
// session has completed the in_world transition.
func RequireInWorld(s *Session) error {
	if s.State() != InWorld {
		return ErrProtocolViolation
	}
	return nil
}
