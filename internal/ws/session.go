package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"caretrack/internal/domain"
)

// sendBuffer bounds the per-session outbound queue. A subscriber that cannot
// drain this many events is considered dead and is disconnected rather than
// stalling the broadcaster.
const sendBuffer = 64

const writeTimeout = 5 * time.Second

// Session is one live connection plus its authenticated principal and current
// room memberships. The send channel is the only path to the wire: the write
// pump serializes frames so per-transport acceptance order is preserved on
// delivery.
type Session struct {
	Principal domain.Principal

	conn   *websocket.Conn
	send   chan Outbound
	ctx    context.Context
	cancel context.CancelFunc

	// subscriptions is owned by the Registry and only touched under its lock.
	subscriptions map[int64]struct{}

	closeOnce sync.Once
}

func newSession(parent context.Context, principal domain.Principal, conn *websocket.Conn) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		Principal:     principal,
		conn:          conn,
		send:          make(chan Outbound, sendBuffer),
		ctx:           ctx,
		cancel:        cancel,
		subscriptions: make(map[int64]struct{}),
	}
}

// enqueue hands a message to the write pump without blocking. A full buffer
// means the session cannot keep up with its rooms; it is cancelled so the
// disconnect path tears it down, instead of staying subscribed and resuming
// later with a gap in the stream.
func (s *Session) enqueue(msg Outbound) bool {
	select {
	case <-s.ctx.Done():
		return false
	case s.send <- msg:
		return true
	default:
		s.cancel()
		return false
	}
}

// writePump drains the send channel onto the wire. A failed write tears the
// session down; the read loop notices via the shared context.
func (s *Session) writePump() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.send:
			writeCtx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := wsjson.Write(writeCtx, s.conn, msg)
			cancel()
			if err != nil {
				s.cancel()
				return
			}
		}
	}
}

// close cancels the session exactly once and closes the connection. Callers
// must deregister from the Registry first so no new messages are enqueued
// against a stale handle.
func (s *Session) close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close(code, reason)
	})
}
