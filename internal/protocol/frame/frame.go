// Package frame implements the fixed-header response framing of the keywire
// wire protocol. Request records travel raw (exact layout width, no frame);
// every server reply is one frame: a 24-byte big-endian header followed by a
// TLV payload.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic spells "KWR1" and guards against desynchronized streams.
	Magic   uint32 = 0x4B575231
	Version uint16 = 1

	FixedHeaderLen = 24

	// FlagError marks replies whose status is not ok, so clients can spot
	// failures without parsing the payload.
	FlagError uint16 = 0x01
)

var (
	ErrShortHeader        = errors.New("frame: short fixed header")
	ErrInvalidMagic       = errors.New("frame: invalid magic")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
)

// Header is the fixed response header.
type Header struct {
	Magic       uint32
	Version     uint16
	Flags       uint16
	MessageID   uint64
	MessageType uint32
	PayloadLen  uint32
}

// Frame is one complete reply.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 8 * 1024 * 1024}
}

// ReadFrame reads one complete frame from r.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [FixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Header: h, Payload: payload}, nil
}

// WriteFrame writes one complete frame to w, stamping magic, version, and
// payload length.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if uint64(len(f.Payload)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}

	h := f.Header
	h.Magic = Magic
	h.Version = Version
	h.PayloadLen = uint32(len(f.Payload))

	hb := EncodeHeader(h)
	if _, err := w.Write(hb); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.Flags)
	binary.BigEndian.PutUint64(buf[8:16], h.MessageID)
	binary.BigEndian.PutUint32(buf[16:20], h.MessageType)
	binary.BigEndian.PutUint32(buf[20:24], h.PayloadLen)
	return buf
}

// DecodeHeader parses and validates one fixed header. The input must be
// exactly FixedHeaderLen bytes.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != FixedHeaderLen {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	h := Header{
		Magic:       binary.BigEndian.Uint32(b[0:4]),
		Version:     binary.BigEndian.Uint16(b[4:6]),
		Flags:       binary.BigEndian.Uint16(b[6:8]),
		MessageID:   binary.BigEndian.Uint64(b[8:16]),
		MessageType: binary.BigEndian.Uint32(b[16:20]),
		PayloadLen:  binary.BigEndian.Uint32(b[20:24]),
	}
	if h.Magic != Magic {
		return Header{}, fmt.Errorf("%w: 0x%08X", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}
