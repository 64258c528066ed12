package tlv

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeFieldsRoundTripPreservesUnknown(t *testing.T) {
	in := []Field{
		StringField(1, "hello"),
		{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}}, // unknown field id
	}
	b := EncodeFields(in)
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].ID != 9999 || out[1].Type != TypeBytes || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[1])
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

func TestTypedAccessorsEnforceTypeAndWidth(t *testing.T) {
	f := U64Field(7, 1)
	got, err := f.U64()
	if err != nil {
		t.Fatalf("u64: %v", err)
	}
	if got != 1 {
		t.Fatalf("unexpected u64 value: %d", got)
	}
	if _, err := f.U8(); err == nil {
		t.Fatalf("expected type mismatch for u8 read of u64 field")
	}

	bad := Field{ID: 7, Type: TypeU64, Value: []byte{0, 1}}
	if _, err := bad.U64(); err == nil {
		t.Fatalf("expected width error for short u64 value")
	}
}

func TestBytesFieldCopiesInput(t *testing.T) {
	src := []byte{1, 2, 3}
	f := BytesField(2, src)
	src[0] = 0xFF
	if f.Value[0] != 1 {
		t.Fatalf("bytes field must copy input")
	}
}

func TestGetFieldFindsFirstMatch(t *testing.T) {
	fields := []Field{U8Field(1, 5), U8Field(2, 6)}
	f, ok := GetField(fields, 2)
	if !ok {
		t.Fatalf("missing field 2")
	}
	v, err := f.U8()
	if err != nil || v != 6 {
		t.Fatalf("unexpected field value: %d err=%v", v, err)
	}
	if _, ok := GetField(fields, 3); ok {
		t.Fatalf("field 3 should be absent")
	}
}
