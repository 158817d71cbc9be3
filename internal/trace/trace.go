// Package trace loads and records packet traces: flat concatenations of
// frames in session order, exactly as they crossed the wire.
package trace

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/tcpbmock/internal/protocol/frame"
	"github.com/danmuck/tcpbmock/internal/protocol/schema"
	"github.com/rs/zerolog/log"
)

var ErrTruncatedTrace = errors.New("trace: truncated trace")

// Entry is one decoded frame of a trace.
type Entry struct {
	Type    schema.MessageType
	Message schema.Message
	// Offset is the byte position of the frame header in the source.
	Offset int
}

// Trace is an immutable ordered sequence of entries.
type Trace struct {
	entries []Entry
	source  string
}

// New builds a trace from messages, assigning offsets as if they were encoded back to back.
func New(msgs ...schema.Message) Trace {
	entries := make([]Entry, 0, len(msgs))
	off := 0
	for _, msg := range msgs {
		entries = append(entries, Entry{Type: msg.Type(), Message: msg, Offset: off})
		off += frame.HeaderLen + len(msg.Marshal())
	}
	return Trace{entries: entries}
}

func (t Trace) Len() int {
	return len(t.entries)
}

func (t Trace) At(i int) Entry {
	return t.entries[i]
}

// Entries returns a copy of the entry list.
func (t Trace) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Source names where the trace was loaded from, if anywhere.
func (t Trace) Source() string {
	return t.source
}

// Load decodes every frame in data, in order.
func Load(data []byte) (Trace, error) {
	entries := make([]Entry, 0)
	for off := 0; off < len(data); {
		f, rest, err := frame.Split(data[off:])
		if err != nil {
			return Trace{}, fmt.Errorf("%w: entry=%d offset=%d: %v", ErrTruncatedTrace, len(entries), off, err)
		}
		msg, err := schema.Decode(f.Header.MessageType, f.Payload)
		if err != nil {
			return Trace{}, fmt.Errorf("trace: entry=%d offset=%d: %w", len(entries), off, err)
		}
		entries = append(entries, Entry{Type: msg.Type(), Message: msg, Offset: off})
		off = len(data) - len(rest)
	}
	return Trace{entries: entries}, nil
}

// LoadFile reads and decodes the trace at path.
func LoadFile(path string) (Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Trace{}, fmt.Errorf("trace load failed (%s): %w", path, err)
	}
	t, err := Load(data)
	if err != nil {
		log.Error().Msgf("trace.LoadFile path=%q err=%v", path, err)
		return Trace{}, fmt.Errorf("trace load failed (%s): %w", path, err)
	}
	t.source = path
	log.Debug().Msgf("trace.LoadFile path=%q entries=%d bytes=%d", path, t.Len(), len(data))
	return t, nil
}

// Encode re-encodes every entry. Encode(Load(b)) reproduces b.
func (t Trace) Encode() []byte {
	var out []byte
	for _, e := range t.entries {
		out = frame.Append(out, frame.New(uint32(e.Type), e.Message.Marshal()))
	}
	return out
}

// WriteFile encodes the trace to path.
func (t Trace) WriteFile(path string) error {
	if err := os.WriteFile(path, t.Encode(), 0o644); err != nil {
		return fmt.Errorf("trace write failed (%s): %w", path, err)
	}
	return nil
}
