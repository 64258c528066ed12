// Package client dials a keywire server, performs the hello handshake, and
// streams key lookups over the resulting session.
package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/keywire/internal/protocol"
	"github.com/danmuck/keywire/internal/protocol/frame"
	"github.com/danmuck/keywire/internal/protocol/schema"
	"github.com/danmuck/keywire/internal/protocol/session"
)

var (
	ErrServerAddrRequired = errors.New("client: server address required")
	ErrClientIDRequired   = errors.New("client: client_id required")
	ErrHandshakeRejected  = errors.New("client: handshake rejected")
	ErrSessionClosed      = errors.New("client: session closed")
	ErrResponseMismatch   = errors.New("client: response out of sequence")
	ErrServerShutdown     = errors.New("client: server shutting down")
)

type Config struct {
	ServerAddr         string
	ClientID           string
	RecordKind         string
	AuthToken          string
	MaxConnectAttempts int
	Session            session.Config
}

type Client struct {
	cfg   Config
	codec *protocol.Codec
	rng   *rand.Rand
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ServerAddr) == "" {
		return nil, ErrServerAddrRequired
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, ErrClientIDRequired
	}
	if strings.TrimSpace(cfg.RecordKind) == "" {
		cfg.RecordKind = protocol.KeyLookupKind
	}
	cfg.Session = cfg.Session.WithDefaults()
	codec, err := protocol.NewCodec(0, frame.DefaultLimits())
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:   cfg,
		codec: codec,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Connect dials the server and completes the handshake, retrying transient
// failures with backoff. A handshake rejection is terminal.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	var attempt int
	for {
		attempt++
		conn, err := c.dial(ctx)
		if err != nil {
			log.Warn().
				Int("attempt", attempt).
				Str("addr", c.cfg.ServerAddr).
				Err(err).
				Msg("dial failed")
			if !c.shouldRetry(attempt) {
				return nil, err
			}
			if err := session.WaitBackoff(ctx, c.cfg.Session.Backoff, attempt, c.rng); err != nil {
				return nil, err
			}
			continue
		}

		sess, err := c.handshake(conn)
		if err == nil {
			return sess, nil
		}
		_ = conn.Close()
		if errors.Is(err, ErrHandshakeRejected) || !c.shouldRetry(attempt) {
			return nil, err
		}
		if err := session.WaitBackoff(ctx, c.cfg.Session.Backoff, attempt, c.rng); err != nil {
			return nil, err
		}
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	if err := c.cfg.Session.ValidateClientTransport(); err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: c.cfg.Session.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", c.cfg.ServerAddr)
	if err != nil {
		return nil, err
	}
	if !c.cfg.Session.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := c.cfg.Session.BuildClientTLS(c.cfg.ServerAddr)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, c.cfg.Session.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}

func (c *Client) handshake(conn net.Conn) (*Session, error) {
	_ = conn.SetDeadline(time.Now().Add(c.cfg.Session.HandshakeTimeout))
	reader := bufio.NewReader(conn)
	hello := session.Hello{
		ClientID:   c.cfg.ClientID,
		RecordKind: c.cfg.RecordKind,
		AuthToken:  c.cfg.AuthToken,
	}
	if err := session.WriteHello(conn, hello); err != nil {
		return nil, err
	}
	ack, err := session.ReadHelloAck(reader)
	if err != nil {
		return nil, err
	}
	if ack.Status != session.AckStatusAccepted {
		return nil, fmt.Errorf("%w: code=%d message=%q", ErrHandshakeRejected, ack.Code, ack.Message)
	}
	_ = conn.SetDeadline(time.Time{})
	log.Info().
		Str("addr", c.cfg.ServerAddr).
		Str("record_kind", c.cfg.RecordKind).
		Int("record_width", ack.RecordWidth).
		Msg("session established")
	return &Session{
		conn:   conn,
		reader: reader,
		cfg:    c.cfg.Session,
		codec:  c.codec,
		width:  ack.RecordWidth,
		record: make([]byte, 0, ack.RecordWidth),
	}, nil
}

// Session is one live record stream. Lookups are answered strictly in order,
// so calls are serialized; Session is safe for concurrent use.
type Session struct {
	conn   net.Conn
	reader *bufio.Reader
	cfg    session.Config
	codec  *protocol.Codec
	width  int

	mu     sync.Mutex
	seq    uint64
	record []byte
}

func (s *Session) RecordWidth() int {
	return s.width
}

func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Lookup streams one key record and waits for its reply frame. A goodbye
// frame from a draining server surfaces as ErrServerShutdown.
func (s *Session) Lookup(ctx context.Context, key uint64) (protocol.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return protocol.Response{}, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return protocol.Response{}, err
	}

	s.record = protocol.AppendKey(s.record[:0], key)
	if err := s.setWriteDeadline(ctx); err != nil {
		return protocol.Response{}, err
	}
	if _, err := s.conn.Write(s.record); err != nil {
		return protocol.Response{}, err
	}
	s.seq++

	if err := s.setReadDeadline(ctx); err != nil {
		return protocol.Response{}, err
	}
	fr, err := frame.ReadFrame(s.reader, s.codec.Limits())
	if err != nil {
		return protocol.Response{}, err
	}
	reply, err := s.codec.Decode(fr)
	if err != nil {
		return protocol.Response{}, err
	}
	if reply.Type == schema.MsgGoodbye {
		return protocol.Response{}, fmt.Errorf("%w: %s", ErrServerShutdown, reply.Response.Message)
	}
	if reply.MessageID != s.seq {
		return protocol.Response{}, fmt.Errorf("%w: sent=%d got=%d", ErrResponseMismatch, s.seq, reply.MessageID)
	}
	return reply.Response, nil
}

func (s *Session) setWriteDeadline(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return s.conn.SetWriteDeadline(deadline)
}

func (s *Session) setReadDeadline(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.ReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return s.conn.SetReadDeadline(deadline)
}
