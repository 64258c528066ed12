package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	controlTypeHello    = "keywire.hello"
	controlTypeHelloAck = "keywire.hello.ack"

	AckStatusAccepted = "accepted"
	AckStatusRejected = "rejected"
)

// Rejection codes carried in HelloAck.Code.
const (
	RejectCodeUnauthorized      uint32 = 1001
	RejectCodeUnknownRecordKind uint32 = 1002
)

var (
	ErrInvalidHello           = errors.New("session: invalid hello")
	ErrInvalidHelloAck        = errors.New("session: invalid hello ack")
	ErrControlMessageTooLarge = errors.New("session: control message too large")
)

// Hello is the client->server session-start payload. The client declares
// which record kind it will stream; the whole session carries that one kind.
type Hello struct {
	ClientID   string `json:"client_id"`
	RecordKind string `json:"record_kind"`
	AuthToken  string `json:"auth_token,omitempty"`
}

func (h Hello) Validate() error {
	if strings.TrimSpace(h.ClientID) == "" {
		return fmt.Errorf("%w: missing client_id", ErrInvalidHello)
	}
	if strings.TrimSpace(h.RecordKind) == "" {
		return fmt.Errorf("%w: missing record_kind", ErrInvalidHello)
	}
	return nil
}

// HelloAck is the server->client handshake response. On acceptance it pins
// the exact record width the server will read for every record that follows.
type HelloAck struct {
	Status      string `json:"status"`
	Code        uint32 `json:"code"`
	Message     string `json:"message"`
	RecordWidth int    `json:"record_width"`
	TimestampMS uint64 `json:"timestamp_ms"`
}

func (a HelloAck) Validate() error {
	status := strings.TrimSpace(a.Status)
	if status != AckStatusAccepted && status != AckStatusRejected {
		return fmt.Errorf("%w: invalid status", ErrInvalidHelloAck)
	}
	if status == AckStatusAccepted && a.RecordWidth <= 0 {
		return fmt.Errorf("%w: missing record_width", ErrInvalidHelloAck)
	}
	if a.TimestampMS == 0 {
		return fmt.Errorf("%w: missing timestamp_ms", ErrInvalidHelloAck)
	}
	return nil
}

type controlEnvelope struct {
	Type  string    `json:"type"`
	Hello *Hello    `json:"hello,omitempty"`
	Ack   *HelloAck `json:"hello_ack,omitempty"`
}

func WriteHello(w io.Writer, hello Hello) error {
	if err := hello.Validate(); err != nil {
		return err
	}
	return writeControlEnvelope(w, controlEnvelope{
		Type:  controlTypeHello,
		Hello: &hello,
	})
}

func ReadHello(r *bufio.Reader) (Hello, error) {
	env, err := readControlEnvelope(r)
	if err != nil {
		return Hello{}, err
	}
	if env.Type != controlTypeHello || env.Hello == nil {
		return Hello{}, fmt.Errorf("%w: unexpected control type", ErrInvalidHello)
	}
	if err := env.Hello.Validate(); err != nil {
		return Hello{}, err
	}
	return *env.Hello, nil
}

func WriteHelloAck(w io.Writer, ack HelloAck) error {
	if err := ack.Validate(); err != nil {
		return err
	}
	return writeControlEnvelope(w, controlEnvelope{
		Type: controlTypeHelloAck,
		Ack:  &ack,
	})
}

func ReadHelloAck(r *bufio.Reader) (HelloAck, error) {
	env, err := readControlEnvelope(r)
	if err != nil {
		return HelloAck{}, err
	}
	if env.Type != controlTypeHelloAck || env.Ack == nil {
		return HelloAck{}, fmt.Errorf("%w: unexpected control type", ErrInvalidHelloAck)
	}
	if err := env.Ack.Validate(); err != nil {
		return HelloAck{}, err
	}
	return *env.Ack, nil
}

func writeControlEnvelope(w io.Writer, env controlEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

func readControlEnvelope(r *bufio.Reader) (controlEnvelope, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return controlEnvelope{}, err
	}
	if len(line) > 128*1024 {
		return controlEnvelope{}, ErrControlMessageTooLarge
	}
	var env controlEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return controlEnvelope{}, err
	}
	return env, nil
}
