// Package server runs the keywire service: a record-stream listener that
// answers fixed-layout key lookups, plus a gin admin plane for health,
// metrics, and key management.
package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/keywire/internal/auth"
	"github.com/danmuck/keywire/internal/bytebuf"
	"github.com/danmuck/keywire/internal/dispatch"
	"github.com/danmuck/keywire/internal/lookup"
	"github.com/danmuck/keywire/internal/observability"
	"github.com/danmuck/keywire/internal/protocol"
	"github.com/danmuck/keywire/internal/protocol/frame"
	"github.com/danmuck/keywire/internal/protocol/layout"
	"github.com/danmuck/keywire/internal/protocol/session"
	"github.com/danmuck/keywire/internal/store"
)

type Config struct {
	ID                string
	ListenAddr        string
	AdminAddr         string
	AuthToken         string
	CorsOrigins       []string
	MaxInFlight       int
	CompressThreshold int
	MaxPayloadBytes   uint32
	Session           session.Config
}

func DefaultConfig() Config {
	return Config{
		ID:          "keywired",
		ListenAddr:  ":7600",
		AdminAddr:   ":7601",
		MaxInFlight: 64,
		Session:     session.DefaultConfig(),
	}
}

// Service owns the record listener, the dispatch registry, and the admin
// plane. Construct with NewService and drive with Run or Serve.
type Service struct {
	cfg      Config
	store    *store.Store
	registry *dispatch.Registry
	codec    *protocol.Codec
	limits   frame.Limits
	logger   zerolog.Logger

	connsMu sync.Mutex
	conns   map[net.Conn]*sync.Mutex

	sessionClientCount atomic.Int64
	ready              atomic.Bool
	started            time.Time
}

func NewService(cfg Config) (*Service, error) {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = def.ID
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if strings.TrimSpace(cfg.AdminAddr) == "" {
		cfg.AdminAddr = def.AdminAddr
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	cfg.Session = cfg.Session.WithDefaults()

	limits := frame.DefaultLimits()
	if cfg.MaxPayloadBytes > 0 {
		limits.MaxPayloadBytes = cfg.MaxPayloadBytes
	}
	codec, err := protocol.NewCodec(cfg.CompressThreshold, limits)
	if err != nil {
		return nil, err
	}

	st := store.New()
	gate, err := dispatch.NewGate[protocol.Request[protocol.OwnedKey], protocol.Response](
		lookup.NewHandler(st), cfg.MaxInFlight)
	if err != nil {
		return nil, err
	}
	binding, err := dispatch.Bind(protocol.KeyLookupKind, protocol.KeyLookupLayout, protocol.DecodeKeyRequest, gate)
	if err != nil {
		return nil, err
	}
	registry := dispatch.NewRegistry()
	if err := registry.Register(binding); err != nil {
		return nil, err
	}

	return &Service{
		cfg:      cfg,
		store:    st,
		registry: registry,
		codec:    codec,
		limits:   limits,
		logger:   log.Logger.With().Str("server", cfg.ID).Logger(),
		conns:    make(map[net.Conn]*sync.Mutex),
		started:  time.Now(),
	}, nil
}

// Store exposes the key table for seeding and the admin plane.
func (s *Service) Store() *store.Store {
	return s.store
}

// Run blocks until a termination signal, serving records and the admin plane.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.cfg.Session.ValidateServerTransport(); err != nil {
		return err
	}
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("listen_addr", ln.Addr().String()).
		Str("admin_addr", s.cfg.AdminAddr).
		Strs("kinds", s.registry.Kinds()).
		Msg("keywire listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Serve(ctx, ln) })
	g.Go(func() error { return s.serveAdmin(ctx) })
	g.Go(func() error { return s.heartbeat(ctx) })
	return g.Wait()
}

func (s *Service) listen() (net.Listener, error) {
	if !s.cfg.Session.TLS.Enabled {
		return net.Listen("tcp", s.cfg.ListenAddr)
	}
	tlsCfg, err := s.cfg.Session.BuildServerTLS()
	if err != nil {
		return nil, err
	}
	return tls.Listen("tcp", s.cfg.ListenAddr, tlsCfg)
}

// Serve accepts record sessions on ln until ctx ends. On shutdown every
// tracked connection receives a goodbye frame before it is closed.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.cfg.Session.ValidateServerTransport(); err != nil {
		return err
	}
	defer ln.Close()
	s.ready.Store(true)
	defer s.ready.Store(false)
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		writeMu := s.trackConn(conn)
		go s.handleConn(ctx, conn, writeMu)
	}
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn, writeMu *sync.Mutex) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	active := s.sessionClientCount.Add(1)
	s.logger.Info().Str("remote", remote).Int64("active_clients", active).Msg("client connected")
	defer func() {
		remaining := s.sessionClientCount.Add(-1)
		s.logger.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("client disconnected")
	}()

	reader := bufio.NewReader(conn)
	hello, binding, ack := s.handshake(conn, reader)
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.Session.WriteTimeout))
	if err := session.WriteHelloAck(conn, ack); err != nil {
		s.logger.Warn().Str("remote", remote).Err(err).Msg("write hello ack failed")
		return
	}
	if ack.Status != session.AckStatusAccepted {
		observability.RecordHandshake(s.cfg.ID, rejectResult(ack.Code))
		s.logger.Warn().
			Str("remote", remote).
			Str("client_id", hello.ClientID).
			Uint32("code", ack.Code).
			Msg("handshake rejected")
		return
	}
	observability.RecordHandshake(s.cfg.ID, "accepted")
	s.logger.Info().
		Str("remote", remote).
		Str("client_id", hello.ClientID).
		Str("record_kind", binding.Kind()).
		Int("record_width", ack.RecordWidth).
		Msg("session accepted")

	if err := conn.SetDeadline(time.Time{}); err != nil {
		s.logger.Warn().Str("remote", remote).Err(err).Msg("clear deadline failed")
	}
	s.serveRecords(ctx, conn, reader, writeMu, binding)
}

// handshake reads and validates the hello line. It always returns an ack to
// send; a non-accepted ack carries the rejection code.
func (s *Service) handshake(conn net.Conn, reader *bufio.Reader) (session.Hello, *dispatch.Binding, session.HelloAck) {
	_ = conn.SetDeadline(time.Now().Add(s.cfg.Session.HandshakeTimeout))
	now := uint64(time.Now().UnixMilli())

	hello, err := session.ReadHello(reader)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read hello failed")
		return session.Hello{}, nil, session.HelloAck{
			Status:      session.AckStatusRejected,
			Code:        session.RejectCodeUnauthorized,
			Message:     "invalid hello payload",
			TimestampMS: now,
		}
	}

	if s.cfg.AuthToken != "" {
		validator := auth.StaticToken{Token: s.cfg.AuthToken}
		if err := validator.Validate(hello.AuthToken); err != nil {
			return hello, nil, session.HelloAck{
				Status:      session.AckStatusRejected,
				Code:        session.RejectCodeUnauthorized,
				Message:     "invalid auth token",
				TimestampMS: now,
			}
		}
	}

	binding, ok := s.registry.Resolve(hello.RecordKind)
	if !ok {
		return hello, nil, session.HelloAck{
			Status:      session.AckStatusRejected,
			Code:        session.RejectCodeUnknownRecordKind,
			Message:     fmt.Sprintf("unknown record kind %q", hello.RecordKind),
			TimestampMS: now,
		}
	}

	return hello, binding, session.HelloAck{
		Status:      session.AckStatusAccepted,
		Message:     "session accepted",
		RecordWidth: binding.Layout().Size(),
		TimestampMS: now,
	}
}

// serveRecords runs the per-connection loop: read one fixed-width record,
// dispatch it, answer with one frame. Records are answered in arrival order;
// MessageID is the per-session sequence number starting at 1.
func (s *Service) serveRecords(
	ctx context.Context,
	conn net.Conn,
	reader *bufio.Reader,
	writeMu *sync.Mutex,
	binding *dispatch.Binding,
) {
	remote := conn.RemoteAddr().String()
	kind := binding.Kind()
	scratch := make([]byte, binding.Layout().Size())
	var seq uint64

	for {
		if ctx.Err() != nil {
			s.sendGoodbye(conn, writeMu, seq+1)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.Session.ReadTimeout))
		if err := session.ReadRecordInto(reader, scratch); err != nil {
			switch {
			case errors.Is(err, io.EOF):
			case errors.Is(err, session.ErrTruncated):
				s.logger.Warn().Str("remote", remote).Err(err).Msg("record stream truncated")
			case ctx.Err() != nil || errors.Is(err, net.ErrClosed):
			default:
				s.logger.Warn().Str("remote", remote).Err(err).Msg("read record failed")
			}
			return
		}
		seq++

		start := time.Now()
		observability.IncInFlight(s.cfg.ID)
		resp, err := binding.Serve(ctx, bytebuf.From(scratch))
		observability.DecInFlight(s.cfg.ID)
		if err != nil {
			if !s.handleServeError(ctx, conn, writeMu, seq, kind, err) {
				return
			}
			continue
		}
		observability.RecordWireRequest(s.cfg.ID, kind, resp.Status.String(), time.Since(start))

		fr, err := s.codec.EncodeLookupResult(seq, resp)
		if err != nil {
			s.logger.Error().Str("remote", remote).Err(err).Msg("encode result failed")
			return
		}
		if err := s.writeFrame(conn, writeMu, fr); err != nil {
			s.logger.Warn().Str("remote", remote).Err(err).Msg("write result failed")
			return
		}
	}
}

// handleServeError reports whether the record loop should continue.
func (s *Service) handleServeError(
	ctx context.Context,
	conn net.Conn,
	writeMu *sync.Mutex,
	seq uint64,
	kind string,
	err error,
) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.sendGoodbye(conn, writeMu, seq)
		return false
	}

	var lerr *layout.LayoutError
	if errors.As(err, &lerr) {
		observability.RecordDecodeFailure(s.cfg.ID, kind, lerr.Kind.String())
		s.logger.Warn().Str("kind", kind).Err(err).Msg("record rejected")
		resp := protocol.Response{Status: protocol.StatusError, Message: "malformed record"}
		if fr, encErr := s.codec.EncodeLookupResult(seq, resp); encErr == nil {
			_ = s.writeFrame(conn, writeMu, fr)
		}
		return false
	}

	observability.RecordWireRequest(s.cfg.ID, kind, protocol.StatusError.String(), 0)
	s.logger.Error().Str("kind", kind).Err(err).Msg("handler failed")
	resp := protocol.Response{Status: protocol.StatusError, Message: "internal error"}
	fr, encErr := s.codec.EncodeLookupResult(seq, resp)
	if encErr != nil {
		return false
	}
	return s.writeFrame(conn, writeMu, fr) == nil
}

func (s *Service) sendGoodbye(conn net.Conn, writeMu *sync.Mutex, seq uint64) {
	fr := s.codec.EncodeGoodbye(seq, protocol.StatusShuttingDown, "server shutting down")
	_ = s.writeFrame(conn, writeMu, fr)
}

func (s *Service) writeFrame(conn net.Conn, writeMu *sync.Mutex, fr frame.Frame) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.Session.WriteTimeout))
	return frame.WriteFrame(conn, fr, s.limits)
}

func (s *Service) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := s.store.Stats()
			s.logger.Info().
				Int("keys", stats.Keys).
				Int64("bytes", stats.Bytes).
				Int64("active_clients", s.sessionClientCount.Load()).
				Msg("heartbeat")
		}
	}
}

func (s *Service) trackConn(conn net.Conn) *sync.Mutex {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	mu := &sync.Mutex{}
	s.conns[conn] = mu
	return mu
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

// closeAllConns sends each tracked connection a goodbye frame, best effort,
// then closes it.
func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn, mu := range s.conns {
		s.sendGoodbye(conn, mu, 0)
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

func rejectResult(code uint32) string {
	switch code {
	case session.RejectCodeUnauthorized:
		return "unauthorized"
	case session.RejectCodeUnknownRecordKind:
		return "unknown_kind"
	default:
		return "rejected"
	}
}
