package session

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/danmuck/tcpbmock/internal/protocol/schema"
)

var (
	ErrTimeout           = errors.New("session: timeout")
	ErrSequenceMismatch  = errors.New("session: sequence mismatch")
	ErrProtocolInvariant = errors.New("session: protocol invariant violation")
	ErrEngineAlreadyRan  = errors.New("session: engine already ran")
)

// SequenceMismatchError reports which expected message the client violated.
type SequenceMismatchError struct {
	Index    int
	Offset   int
	Expected schema.Message
	Received schema.Message
	Diff     schema.Difference
}

func (e *SequenceMismatchError) Error() string {
	return fmt.Sprintf("session: sequence mismatch at expected index=%d offset=%d: %s\nEXPECTED %s: {%s}\nRECEIVED %s: {%s}",
		e.Index, e.Offset, e.Diff,
		e.Expected.Type(), e.Expected,
		e.Received.Type(), e.Received)
}

func (e *SequenceMismatchError) Unwrap() error {
	return ErrSequenceMismatch
}

// ioError maps deadline expiry to ErrTimeout and keeps every other cause intact.
func ioError(op string, err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return fmt.Errorf("session: %s: %w", op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
