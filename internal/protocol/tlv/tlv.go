// Package tlv implements the type-length-value field encoding carried in
// keywire response payloads.
package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
)

// Type IDs from the tlv contract.
const (
	TypeU8     uint8 = 1
	TypeU16    uint8 = 2
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeBool   uint8 = 5
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

// U8Field builds a uint8 field.
func U8Field(id uint16, v uint8) Field {
	return Field{ID: id, Type: TypeU8, Value: []byte{v}}
}

// U32Field builds a big-endian uint32 field.
func U32Field(id uint16, v uint32) Field {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return Field{ID: id, Type: TypeU32, Value: b}
}

// U64Field builds a big-endian uint64 field.
func U64Field(id uint16, v uint64) Field {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return Field{ID: id, Type: TypeU64, Value: b}
}

// StringField builds a string field.
func StringField(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

// BytesField builds a bytes field over a private copy of v.
func BytesField(id uint16, v []byte) Field {
	b := make([]byte, len(v))
	copy(b, v)
	return Field{ID: id, Type: TypeBytes, Value: b}
}

// AppendField appends the wire form of f to dst and returns the result.
func AppendField(dst []byte, f Field) []byte {
	var hdr [HeaderLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], f.ID)
	hdr[2] = f.Type
	binary.BigEndian.PutUint32(hdr[3:7], uint32(len(f.Value)))
	dst = append(dst, hdr[:]...)
	return append(dst, f.Value...)
}

// EncodeFields encodes fields back to back.
func EncodeFields(fields []Field) []byte {
	n := 0
	for _, f := range fields {
		n += HeaderLen + len(f.Value)
	}
	out := make([]byte, 0, n)
	for _, f := range fields {
		out = AppendField(out, f)
	}
	return out
}

// DecodeFields parses a payload of back-to-back fields. Field values are
// copied out of the payload.
func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0, 4)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

// GetField returns the first field with the given id.
func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// MustType rejects a field whose type does not match expected.
func MustType(f Field, expected uint8) error {
	if f.Type != expected {
		return fmt.Errorf("tlv: field %d type mismatch: got %d want %d", f.ID, f.Type, expected)
	}
	return nil
}

// U8 returns the field value as a uint8, enforcing type and width.
func (f Field) U8() (uint8, error) {
	if err := MustType(f, TypeU8); err != nil {
		return 0, err
	}
	if len(f.Value) != 1 {
		return 0, fmt.Errorf("tlv: invalid u8 length: %d", len(f.Value))
	}
	return f.Value[0], nil
}

// U32 returns the field value as a big-endian uint32.
func (f Field) U32() (uint32, error) {
	if err := MustType(f, TypeU32); err != nil {
		return 0, err
	}
	if len(f.Value) != 4 {
		return 0, fmt.Errorf("tlv: invalid u32 length: %d", len(f.Value))
	}
	return binary.BigEndian.Uint32(f.Value), nil
}

// U64 returns the field value as a big-endian uint64.
func (f Field) U64() (uint64, error) {
	if err := MustType(f, TypeU64); err != nil {
		return 0, err
	}
	if len(f.Value) != 8 {
		return 0, fmt.Errorf("tlv: invalid u64 length: %d", len(f.Value))
	}
	return binary.BigEndian.Uint64(f.Value), nil
}

// Text returns the field value as a string.
func (f Field) Text() (string, error) {
	if err := MustType(f, TypeString); err != nil {
		return "", err
	}
	return string(f.Value), nil
}

// Bytes returns the field value, enforcing the bytes type. The returned
// slice is the decoded copy; callers own it.
func (f Field) Bytes() ([]byte, error) {
	if err := MustType(f, TypeBytes); err != nil {
		return nil, err
	}
	return f.Value, nil
}
