package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/keywire/internal/bytebuf"
	"github.com/danmuck/keywire/internal/protocol/frame"
	"github.com/danmuck/keywire/internal/protocol/layout"
	"github.com/danmuck/keywire/internal/protocol/schema"
	"github.com/danmuck/keywire/internal/protocol/tlv"
	"github.com/danmuck/keywire/internal/testutil/testlog"
)

func newTestCodec(t *testing.T, threshold int) *Codec {
	t.Helper()
	c, err := NewCodec(threshold, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func TestDecodeKeyRequestCanonicalRecord(t *testing.T) {
	testlog.Start(t)
	buf := bytebuf.From([]byte{0, 0, 0, 0, 0, 0, 0, 1})

	req, err := DecodeKeyRequest(buf)
	if err != nil {
		t.Fatalf("decode key request: %v", err)
	}
	if got := req.Payload.Key(); got != 1 {
		t.Fatalf("unexpected key: %d", got)
	}
}

func TestDecodeKeyRequestShortRecordFailsSizeMismatch(t *testing.T) {
	testlog.Start(t)
	_, err := DecodeKeyRequest(bytebuf.From([]byte{0, 0, 0, 1}))
	if err == nil {
		t.Fatalf("expected error for 4-byte record")
	}
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LayoutError, got %T: %v", err, err)
	}
	if lerr.Kind != layout.KindSizeMismatch || lerr.Want != 8 || lerr.Got != 4 {
		t.Fatalf("unexpected layout error: %+v", lerr)
	}
}

func TestBorrowingAndOwningDecodeAgree(t *testing.T) {
	testlog.Start(t)
	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	borrowed, err := DecodeKeyRequestBytes(raw)
	if err != nil {
		t.Fatalf("borrowing decode: %v", err)
	}
	owned, err := DecodeKeyRequest(bytebuf.From(raw))
	if err != nil {
		t.Fatalf("owning decode: %v", err)
	}
	if borrowed.Payload.Key() != owned.Payload.Key() {
		t.Fatalf("flavors disagree: %d vs %d", borrowed.Payload.Key(), owned.Payload.Key())
	}
	if owned.Payload.Borrow().Key() != owned.Payload.Key() {
		t.Fatalf("owned borrow disagrees")
	}
}

func TestEncodeKeyRoundTrip(t *testing.T) {
	testlog.Start(t)
	buf := EncodeKey(0xDEADBEEF01020304)

	req, err := DecodeKeyRequest(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Payload.Key() != 0xDEADBEEF01020304 {
		t.Fatalf("round trip key mismatch: %x", req.Payload.Key())
	}
	if buf.Len() != KeyLookupLayout.Size() {
		t.Fatalf("unexpected record width: %d", buf.Len())
	}
}

func TestLookupResultRoundTripRawValue(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t, 0)
	resp := Response{
		Status: StatusOK,
		Key:    42,
		Value:  bytebuf.FromString("hello"),
	}

	fr, err := codec.EncodeLookupResult(7, resp)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if fr.Header.Flags&frame.FlagError != 0 {
		t.Fatalf("ok reply must not carry error flag")
	}

	reply, err := codec.Decode(fr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Type != schema.MsgLookupResult || reply.MessageID != 7 {
		t.Fatalf("unexpected reply header: %+v", reply)
	}
	got := reply.Response
	if got.Status != StatusOK || got.Key != 42 || !got.Value.EqualBytes([]byte("hello")) {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestLookupResultCompressesLargeValues(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t, 16)
	value := bytes.Repeat([]byte("keywire"), 512)
	resp := Response{
		Status: StatusOK,
		Key:    9,
		Value:  bytebuf.From(value),
	}

	fr, err := codec.EncodeLookupResult(1, resp)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(fr.Payload) >= len(value) {
		t.Fatalf("expected compressed payload, wire=%d raw=%d", len(fr.Payload), len(value))
	}

	fields, err := tlv.DecodeFields(fr.Payload)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	ef, ok := tlv.GetField(fields, schema.FieldValueEncoding)
	if !ok {
		t.Fatalf("missing value encoding field")
	}
	enc, err := ef.U8()
	if err != nil || enc != EncodingZstd {
		t.Fatalf("expected zstd encoding, got %d err=%v", enc, err)
	}

	reply, err := codec.Decode(fr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reply.Response.Value.EqualBytes(value) {
		t.Fatalf("decompressed value mismatch")
	}
}

func TestLookupResultNotFoundOmitsValue(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t, 0)
	fr, err := codec.EncodeLookupResult(3, Response{Status: StatusNotFound, Key: 5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if fr.Header.Flags&frame.FlagError == 0 {
		t.Fatalf("not_found reply must carry error flag")
	}

	reply, err := codec.Decode(fr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Response.Status != StatusNotFound || reply.Response.Value.Len() != 0 {
		t.Fatalf("unexpected response: %+v", reply.Response)
	}
}

func TestGoodbyeRoundTrip(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t, 0)
	fr := codec.EncodeGoodbye(99, StatusShuttingDown, "draining")

	reply, err := codec.Decode(fr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Type != schema.MsgGoodbye {
		t.Fatalf("unexpected type: %d", reply.Type)
	}
	if reply.Response.Status != StatusShuttingDown || reply.Response.Message != "draining" {
		t.Fatalf("unexpected goodbye: %+v", reply.Response)
	}
}

func TestDecodeRejectsInvalidStatus(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t, 0)
	payload := tlv.EncodeFields([]tlv.Field{
		tlv.U8Field(schema.FieldStatus, 200),
		tlv.U64Field(schema.FieldKey, 1),
	})
	fr := frame.Frame{
		Header:  frame.Header{MessageID: 1, MessageType: schema.MsgLookupResult},
		Payload: payload,
	}
	_, err := codec.Decode(fr)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestDecodeRejectsUnknownValueEncoding(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t, 0)
	payload := tlv.EncodeFields([]tlv.Field{
		tlv.U8Field(schema.FieldStatus, uint8(StatusOK)),
		tlv.U64Field(schema.FieldKey, 1),
		tlv.BytesField(schema.FieldValue, []byte{1, 2, 3}),
		tlv.U8Field(schema.FieldValueEncoding, 77),
	})
	fr := frame.Frame{
		Header:  frame.Header{MessageID: 1, MessageType: schema.MsgLookupResult},
		Payload: payload,
	}
	_, err := codec.Decode(fr)
	if !errors.Is(err, ErrUnknownEncoding) {
		t.Fatalf("expected ErrUnknownEncoding, got %v", err)
	}
}

func TestDecodeRejectsMissingRequiredField(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t, 0)
	payload := tlv.EncodeFields([]tlv.Field{
		tlv.U8Field(schema.FieldStatus, uint8(StatusOK)),
	})
	fr := frame.Frame{
		Header:  frame.Header{MessageID: 1, MessageType: schema.MsgLookupResult},
		Payload: payload,
	}
	_, err := codec.Decode(fr)
	var ve schema.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected schema.ValidationError, got %v", err)
	}
	if ve.FieldID != schema.FieldKey {
		t.Fatalf("unexpected field id: %d", ve.FieldID)
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	testlog.Start(t)
	codec, err := NewCodec(-1, frame.Limits{MaxPayloadBytes: 64})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	resp := Response{
		Status: StatusOK,
		Key:    1,
		Value:  bytebuf.From(bytes.Repeat([]byte{0xAB}, 256)),
	}
	_, err = codec.EncodeLookupResult(1, resp)
	if !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
