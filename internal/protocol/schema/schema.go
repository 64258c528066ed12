// Package schema declares keywire's reply message types, TLV field IDs, and
// the required-field contract enforced on every decoded payload.
package schema

import (
	"fmt"

	"github.com/danmuck/keywire/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs carried in the frame header.
const (
	MsgLookupResult uint32 = 1
	MsgGoodbye      uint32 = 2
)

// Field IDs carried in reply payloads.
const (
	FieldStatus        uint16 = 1
	FieldKey           uint16 = 2
	FieldValue         uint16 = 3
	FieldValueEncoding uint16 = 4
	FieldMessage       uint16 = 5
)

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgLookupResult: {
		{FieldStatus, tlv.TypeU8},
		{FieldKey, tlv.TypeU64},
	},
	MsgGoodbye: {
		{FieldStatus, tlv.TypeU8},
		{FieldMessage, tlv.TypeString},
	},
}

// Validate enforces required fields and required field types for a message
// type. Unknown fields are ignored so the contract can grow.
func Validate(messageType uint32, fields []tlv.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		log.Error().Uint32("message_type", messageType).Msg("schema validate unknown message_type")
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Error().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Msg("schema validate missing field")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Error().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema validate type mismatch")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	return nil
}
