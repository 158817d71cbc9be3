package schema

import (
	"bytes"
	"fmt"
)

// Equal reports whether a and b have the same type and canonical encoding.
func Equal(a, b Message) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	return bytes.Equal(a.Marshal(), b.Marshal())
}

// Difference locates the first divergence between two messages.
type Difference struct {
	ExpectedType MessageType
	ReceivedType MessageType
	// Offset is the first differing byte of the canonical encodings, -1 when types differ.
	Offset      int
	ExpectedLen int
	ReceivedLen int
}

func (d Difference) String() string {
	if d.ExpectedType != d.ReceivedType {
		return fmt.Sprintf("type expected=%s received=%s", d.ExpectedType, d.ReceivedType)
	}
	return fmt.Sprintf("type=%s first_diff_byte=%d expected_len=%d received_len=%d",
		d.ExpectedType, d.Offset, d.ExpectedLen, d.ReceivedLen)
}

// Diff compares expected against received. ok is false when they differ.
func Diff(expected, received Message) (Difference, bool) {
	d := Difference{
		ExpectedType: expected.Type(),
		ReceivedType: received.Type(),
		Offset:       -1,
	}
	if d.ExpectedType != d.ReceivedType {
		return d, false
	}
	eb, rb := expected.Marshal(), received.Marshal()
	d.ExpectedLen, d.ReceivedLen = len(eb), len(rb)
	n := min(len(eb), len(rb))
	for i := 0; i < n; i++ {
		if eb[i] != rb[i] {
			d.Offset = i
			return d, false
		}
	}
	if len(eb) != len(rb) {
		d.Offset = n
		return d, false
	}
	return d, true
}
