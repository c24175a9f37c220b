package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"caretrack/internal/domain"
	"caretrack/internal/identity"
	"caretrack/internal/platform/metrics"
	"caretrack/internal/ratelimit"
	"caretrack/internal/tracking"
	pkgerrors "caretrack/pkg/errors"
)

// Gateway accepts websocket connections, authenticates the bearer token into
// a principal, and routes inbound messages to the registry and the state
// machine. A connection that fails authentication is refused before any
// session object exists.
type Gateway struct {
	verifier identity.Verifier
	registry *Registry
	machine  *tracking.Machine
	limiter  *ratelimit.Limiter

	logger           *slog.Logger
	metrics          *metrics.Metrics
	handshakeTimeout time.Duration
}

type GatewayOption func(*Gateway)

func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = logger }
}

func WithMetrics(mx *metrics.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = mx }
}

func WithHandshakeTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.handshakeTimeout = d
		}
	}
}

func NewGateway(verifier identity.Verifier, registry *Registry, machine *tracking.Machine, limiter *ratelimit.Limiter, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		verifier:         verifier,
		registry:         registry,
		machine:          machine,
		limiter:          limiter,
		logger:           slog.Default(),
		handshakeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ServeHTTP is the upgrade endpoint. The token comes from the Authorization
// header or, for browser clients that cannot set headers on websocket dials,
// the token query parameter.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	verifyCtx, cancel := context.WithTimeout(r.Context(), g.handshakeTimeout)
	principal, err := g.verifier.Verify(verifyCtx, bearerToken(r))
	cancel()
	if err != nil {
		g.logger.WarnContext(r.Context(), "connection refused", "error", err)
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	g.metrics.IncConnections()
	g.metrics.SessionOpened()
	g.logger.Info("session connected",
		"principal_id", principal.ID,
		"role", principal.Role,
	)

	s := newSession(context.Background(), principal, conn)
	go s.writePump()
	g.readLoop(s)

	// Deregister before cancelling so no broadcast targets a stale handle.
	g.registry.RemoveSession(s)
	s.close(websocket.StatusNormalClosure, "closed")
	g.metrics.SessionClosed()
	g.logger.Info("session disconnected",
		"principal_id", principal.ID,
		"role", principal.Role,
	)
}

// readLoop pulls frames off the wire for the session's lifetime. The
// handshake window covers the first message too: a client that upgrades and
// then never speaks is dropped rather than holding a session open.
func (g *Gateway) readLoop(s *Session) {
	firstCtx, cancel := context.WithTimeout(s.ctx, g.handshakeTimeout)
	var env Envelope
	err := wsjson.Read(firstCtx, s.conn, &env)
	cancel()
	if err != nil {
		return
	}
	g.dispatch(s, env)

	for {
		var env Envelope
		if err := wsjson.Read(s.ctx, s.conn, &env); err != nil {
			return
		}
		g.dispatch(s, env)
	}
}

// dispatch validates one inbound message and routes it. Every failure is
// answered on the same session and never affects other sessions or rooms.
func (g *Gateway) dispatch(s *Session, env Envelope) {
	switch env.Type {
	case msgJoin:
		p, err := decodeJoin(env.Data)
		if err != nil {
			s.enqueue(errorMsg(err))
			return
		}
		if err := g.registry.Join(s.ctx, s, p.TransportID); err != nil {
			s.enqueue(errorMsg(err))
			return
		}
		s.enqueue(joinedMsg(p.TransportID))

	case msgLeave:
		p, err := decodeJoin(env.Data)
		if err != nil {
			s.enqueue(errorMsg(err))
			return
		}
		g.registry.Leave(s, p.TransportID)
		s.enqueue(leftMsg(p.TransportID))

	case msgPosition:
		p, ts, err := decodePosition(env.Data)
		if err != nil {
			s.enqueue(errorMsg(err))
			return
		}
		if !g.limiter.Allow(s.ctx, s.Principal.ID, p.TransportID) {
			g.metrics.IncRateLimited()
			s.enqueue(errorMsg(pkgerrors.New(pkgerrors.CodeRateLimited, "rate limit exceeded")))
			return
		}
		if err := g.machine.RecordPosition(s.ctx, s.Principal, p.TransportID, p.Lat, p.Lon, p.Accuracy, ts); err != nil {
			s.enqueue(errorMsg(err))
			return
		}

	case msgStatus:
		p, err := decodeStatus(env.Data)
		if err != nil {
			s.enqueue(errorMsg(err))
			return
		}
		if err := g.machine.UpdateStatus(s.ctx, s.Principal, p.TransportID, domain.TransportStatus(p.Status), p.Note); err != nil {
			s.enqueue(errorMsg(err))
			return
		}

	default:
		s.enqueue(errorMsg(pkgerrors.New(pkgerrors.CodeValidation, "unknown message type")))
	}
}

func bearerToken(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return r.URL.Query().Get("token")
}
