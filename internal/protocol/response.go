package protocol

import (
	"errors"
	"fmt"

	"github.com/danmuck/keywire/internal/bytebuf"
	"github.com/danmuck/keywire/internal/protocol/frame"
	"github.com/danmuck/keywire/internal/protocol/schema"
	"github.com/danmuck/keywire/internal/protocol/tlv"
	"github.com/klauspost/compress/zstd"
)

// Status is the outcome of one lookup, carried as a u8 field.
type Status uint8

const (
	StatusOK           Status = 0
	StatusNotFound     Status = 1
	StatusError        Status = 2
	StatusShuttingDown Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusError:
		return "error"
	case StatusShuttingDown:
		return "shutting_down"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Value encodings carried in FieldValueEncoding. Raw is implied when the
// field is absent.
const (
	EncodingRaw  uint8 = 0
	EncodingZstd uint8 = 1
)

// DefaultCompressThreshold is the value size at which replies switch to
// zstd, chosen so small values skip the compressor entirely.
const DefaultCompressThreshold = 512

var (
	ErrInvalidStatus   = errors.New("protocol: invalid status")
	ErrUnknownEncoding = errors.New("protocol: unknown value encoding")
)

// Response is one decoded lookup outcome. Value is populated only when
// Status is StatusOK.
type Response struct {
	Status  Status
	Key     uint64
	Value   bytebuf.Buffer
	Message string
}

// Reply is one decoded frame from the server: a lookup result or a goodbye.
type Reply struct {
	MessageID uint64
	Type      uint32
	Response  Response
}

// Codec encodes and decodes reply frames, compressing values above the
// configured threshold. A Codec is safe for concurrent use.
type Codec struct {
	enc       *zstd.Encoder
	dec       *zstd.Decoder
	threshold int
	limits    frame.Limits
}

// NewCodec builds a reply codec. A zero compressThreshold selects
// DefaultCompressThreshold; a negative one disables compression.
func NewCodec(compressThreshold int, limits frame.Limits) (*Codec, error) {
	if compressThreshold == 0 {
		compressThreshold = DefaultCompressThreshold
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("protocol: new zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limits.MaxPayloadBytes)))
	if err != nil {
		return nil, fmt.Errorf("protocol: new zstd reader: %w", err)
	}
	return &Codec{
		enc:       enc,
		dec:       dec,
		threshold: compressThreshold,
		limits:    limits,
	}, nil
}

// Limits returns the frame limits the codec was built with.
func (c *Codec) Limits() frame.Limits {
	return c.limits
}

// EncodeLookupResult builds the reply frame for one lookup.
func (c *Codec) EncodeLookupResult(messageID uint64, resp Response) (frame.Frame, error) {
	fields := []tlv.Field{
		tlv.U8Field(schema.FieldStatus, uint8(resp.Status)),
		tlv.U64Field(schema.FieldKey, resp.Key),
	}
	if resp.Status == StatusOK {
		value := resp.Value.Bytes()
		encoding := EncodingRaw
		if c.threshold > 0 && len(value) >= c.threshold {
			compressed := c.enc.EncodeAll(value, make([]byte, 0, len(value)/2))
			if len(compressed) < len(value) {
				value = compressed
				encoding = EncodingZstd
			}
		}
		fields = append(fields, tlv.Field{ID: schema.FieldValue, Type: tlv.TypeBytes, Value: value})
		if encoding != EncodingRaw {
			fields = append(fields, tlv.U8Field(schema.FieldValueEncoding, encoding))
		}
	}
	if resp.Message != "" {
		fields = append(fields, tlv.StringField(schema.FieldMessage, resp.Message))
	}

	payload := tlv.EncodeFields(fields)
	if uint64(len(payload)) > uint64(c.limits.MaxPayloadBytes) {
		return frame.Frame{}, frame.ErrPayloadTooLarge
	}

	var flags uint16
	if resp.Status != StatusOK {
		flags |= frame.FlagError
	}
	return frame.Frame{
		Header: frame.Header{
			Flags:       flags,
			MessageID:   messageID,
			MessageType: schema.MsgLookupResult,
		},
		Payload: payload,
	}, nil
}

// EncodeGoodbye builds the terminal frame the server sends before closing a
// stream, for example on graceful shutdown.
func (c *Codec) EncodeGoodbye(messageID uint64, status Status, message string) frame.Frame {
	payload := tlv.EncodeFields([]tlv.Field{
		tlv.U8Field(schema.FieldStatus, uint8(status)),
		tlv.StringField(schema.FieldMessage, message),
	})
	return frame.Frame{
		Header: frame.Header{
			Flags:       frame.FlagError,
			MessageID:   messageID,
			MessageType: schema.MsgGoodbye,
		},
		Payload: payload,
	}
}

// Decode parses one received frame, enforcing the required-field contract
// and transparently decompressing values.
func (c *Codec) Decode(fr frame.Frame) (Reply, error) {
	fields, err := tlv.DecodeFields(fr.Payload)
	if err != nil {
		return Reply{}, err
	}
	if err := schema.Validate(fr.Header.MessageType, fields); err != nil {
		return Reply{}, err
	}

	reply := Reply{
		MessageID: fr.Header.MessageID,
		Type:      fr.Header.MessageType,
	}

	statusField, _ := tlv.GetField(fields, schema.FieldStatus)
	rawStatus, err := statusField.U8()
	if err != nil {
		return Reply{}, err
	}
	status := Status(rawStatus)
	if status > StatusShuttingDown {
		return Reply{}, fmt.Errorf("%w: %d", ErrInvalidStatus, rawStatus)
	}
	reply.Response.Status = status

	if f, ok := tlv.GetField(fields, schema.FieldMessage); ok {
		msg, err := f.Text()
		if err != nil {
			return Reply{}, err
		}
		reply.Response.Message = msg
	}

	if fr.Header.MessageType == schema.MsgGoodbye {
		return reply, nil
	}

	keyField, _ := tlv.GetField(fields, schema.FieldKey)
	key, err := keyField.U64()
	if err != nil {
		return Reply{}, err
	}
	reply.Response.Key = key

	if f, ok := tlv.GetField(fields, schema.FieldValue); ok {
		value, err := f.Bytes()
		if err != nil {
			return Reply{}, err
		}
		encoding := EncodingRaw
		if ef, ok := tlv.GetField(fields, schema.FieldValueEncoding); ok {
			encoding, err = ef.U8()
			if err != nil {
				return Reply{}, err
			}
		}
		switch encoding {
		case EncodingRaw:
		case EncodingZstd:
			value, err = c.dec.DecodeAll(value, nil)
			if err != nil {
				return Reply{}, fmt.Errorf("protocol: decompress value: %w", err)
			}
		default:
			return Reply{}, fmt.Errorf("%w: %d", ErrUnknownEncoding, encoding)
		}
		reply.Response.Value = bytebuf.Take(value)
	}
	return reply, nil
}
