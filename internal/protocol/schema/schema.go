package schema

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// MessageType is the wire tag carried in every frame header.
type MessageType uint32

// Message type IDs from the terachem_server MessageType enum.
const (
	MsgStatus    MessageType = 0
	MsgMol       MessageType = 1
	MsgJobInput  MessageType = 2
	MsgJobOutput MessageType = 3
)

var (
	ErrUnknownMessageType = errors.New("schema: unknown message type")
	ErrMalformedMessage   = errors.New("schema: malformed message")
)

func (t MessageType) String() string {
	switch t {
	case MsgStatus:
		return "STATUS"
	case MsgMol:
		return "MOL"
	case MsgJobInput:
		return "JOBINPUT"
	case MsgJobOutput:
		return "JOBOUTPUT"
	default:
		return fmt.Sprintf("MessageType(%d)", uint32(t))
	}
}

// Known reports whether t belongs to the closed message set.
func (t MessageType) Known() bool {
	_, ok := constructors[t]
	return ok
}

// Message is one decoded payload. The set of implementations is closed.
type Message interface {
	Type() MessageType
	// Marshal returns the canonical wire encoding.
	Marshal() []byte
	String() string

	unmarshal(b []byte) error
}

var constructors = map[MessageType]func() Message{
	MsgStatus:    func() Message { return &Status{} },
	MsgMol:       func() Message { return &Mol{} },
	MsgJobInput:  func() Message { return &JobInput{} },
	MsgJobOutput: func() Message { return &JobOutput{} },
}

// New returns an empty message for t.
func New(t MessageType) (Message, error) {
	ctor, ok := constructors[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint32(t))
	}
	return ctor(), nil
}

// Decode parses payload under the schema selected by the raw wire tag.
func Decode(tag uint32, payload []byte) (Message, error) {
	msg, err := New(MessageType(tag))
	if err != nil {
		log.Error().Msgf("schema.Decode unknown message_type=%d len=%d", tag, len(payload))
		return nil, err
	}
	if err := msg.unmarshal(payload); err != nil {
		log.Error().Msgf("schema.Decode malformed message_type=%s len=%d err=%v", MessageType(tag), len(payload), err)
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, MessageType(tag), err)
	}
	log.Trace().Msgf("schema.Decode ok message_type=%s len=%d", MessageType(tag), len(payload))
	return msg, nil
}

// Encode returns the wire tag and canonical payload for msg.
func Encode(msg Message) (uint32, []byte, error) {
	if msg == nil {
		return 0, nil, fmt.Errorf("%w: nil message", ErrMalformedMessage)
	}
	if !msg.Type().Known() {
		return 0, nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint32(msg.Type()))
	}
	return uint32(msg.Type()), msg.Marshal(), nil
}
