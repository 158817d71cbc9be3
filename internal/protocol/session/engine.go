package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/danmuck/tcpbmock/internal/observability"
	"github.com/danmuck/tcpbmock/internal/protocol/frame"
	"github.com/danmuck/tcpbmock/internal/protocol/schema"
	"github.com/danmuck/tcpbmock/internal/trace"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// State is one phase of the session state machine.
type State int

const (
	StateAwaitingClientFrame State = iota
	StateMatching
	StateResponding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingClientFrame:
		return "awaiting_client_frame"
	case StateMatching:
		return "matching"
	case StateResponding:
		return "responding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) terminal() bool {
	return s == StateDone || s == StateFailed
}

// Outcome is the terminal result of one session.
type Outcome struct {
	SessionID string
	State     State
	Received  int
	Sent      int
	Started   time.Time
	Finished  time.Time
	Err       error
}

func (o Outcome) OK() bool {
	return o.State == StateDone && o.Err == nil
}

func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// Engine replays a response trace to one client while checking it against an expected trace.
// Cursors are private to the engine; the traces are never mutated.
type Engine struct {
	cfg       Config
	id        string
	expected  trace.Trace
	responses trace.Trace

	next    int
	reply   int
	state   State
	pending trace.Entry

	received int
	sent     int
	ran      bool
}

// NewEngine validates that responses can serve expected and returns a ready engine.
func NewEngine(cfg Config, expected, responses trace.Trace) (*Engine, error) {
	if err := Validate(expected, responses); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg.WithDefaults(),
		id:        uuid.NewString(),
		expected:  expected,
		responses: responses,
		state:     StateAwaitingClientFrame,
	}
	if expected.Len() == 0 {
		e.state = StateDone
	}
	return e, nil
}

// Validate walks the traces as a conforming session would and checks that every
// request has a reply and every completed status has a follow-up entry.
func Validate(expected, responses trace.Trace) error {
	reply := 0
	for i := 0; i < expected.Len(); i++ {
		if reply >= responses.Len() {
			return fmt.Errorf("%w: no response for expected index=%d", ErrProtocolInvariant, i)
		}
		completed := isCompleted(responses.At(reply))
		reply++
		if completed {
			if reply >= responses.Len() {
				return fmt.Errorf("%w: completed status at response index=%d is not followed by a result", ErrProtocolInvariant, reply-1)
			}
			reply++
		}
	}
	return nil
}

func (e *Engine) ID() string {
	return e.id
}

func (e *Engine) State() State {
	return e.state
}

// Cursors returns the expected and response positions.
func (e *Engine) Cursors() (int, int) {
	return e.next, e.reply
}

// Run drives the session over conn until the expected trace is exhausted or a step fails.
// conn is closed on every exit path.
func (e *Engine) Run(ctx context.Context, conn io.ReadWriteCloser) (Outcome, error) {
	if e.ran {
		_ = conn.Close()
		return Outcome{SessionID: e.id, State: e.state, Err: ErrEngineAlreadyRan}, ErrEngineAlreadyRan
	}
	e.ran = true

	out := Outcome{SessionID: e.id, Started: time.Now()}
	closeConn := closeOnce(conn)
	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	log.Debug().Msgf("session.Engine.Run start session=%s expected=%d responses=%d", e.id, e.expected.Len(), e.responses.Len())
	var err error
	for !e.state.terminal() {
		if err = e.step(conn); err != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("session: %w: %v", ctx.Err(), err)
			}
			e.state = StateFailed
		}
	}
	closeConn()

	out.State = e.state
	out.Received = e.received
	out.Sent = e.sent
	out.Finished = time.Now()
	out.Err = err
	if err != nil {
		log.Warn().Msgf("session.Engine.Run failed session=%s expected_index=%d response_index=%d err=%v", e.id, e.next, e.reply, err)
		observability.RecordSession("failed", out.Duration())
		return out, err
	}
	log.Info().Msgf("session.Engine.Run done session=%s received=%d sent=%d", e.id, out.Received, out.Sent)
	observability.RecordSession("done", out.Duration())
	return out, nil
}

// step performs exactly one state transition.
func (e *Engine) step(conn io.ReadWriter) error {
	switch e.state {
	case StateAwaitingClientFrame:
		entry, err := e.readClient(conn)
		if err != nil {
			return err
		}
		e.pending = entry
		e.state = StateMatching
	case StateMatching:
		if err := e.match(e.pending); err != nil {
			return err
		}
		e.next++
		e.state = StateResponding
	case StateResponding:
		if err := e.respond(conn); err != nil {
			return err
		}
		if e.next >= e.expected.Len() {
			e.state = StateDone
		} else {
			e.state = StateAwaitingClientFrame
		}
	default:
		return fmt.Errorf("session: step from terminal state %s", e.state)
	}
	return nil
}

func (e *Engine) readClient(r io.Reader) (trace.Entry, error) {
	if d, ok := r.(readDeadliner); ok {
		_ = d.SetReadDeadline(time.Now().Add(e.cfg.ReadTimeout))
	}
	fr, err := frame.ReadFrame(r, e.cfg.Limits)
	if err != nil {
		return trace.Entry{}, ioError(fmt.Sprintf("read frame for expected index=%d", e.next), err)
	}
	e.received++
	msg, err := schema.Decode(fr.Header.MessageType, fr.Payload)
	if err != nil {
		return trace.Entry{}, fmt.Errorf("session: decode frame for expected index=%d: %w", e.next, err)
	}
	observability.RecordFrame("recv", msg.Type().String())
	log.Debug().Msgf("session.Engine recv session=%s message_type=%s len=%d", e.id, msg.Type(), len(fr.Payload))
	return trace.Entry{Type: msg.Type(), Message: msg}, nil
}

func (e *Engine) match(got trace.Entry) error {
	want := e.expected.At(e.next)
	diff, ok := schema.Diff(want.Message, got.Message)
	if ok {
		return nil
	}
	mismatch := &SequenceMismatchError{
		Index:    e.next,
		Offset:   want.Offset,
		Expected: want.Message,
		Received: got.Message,
		Diff:     diff,
	}
	log.Error().Msgf("session.Engine.match session=%s index=%d %s", e.id, e.next, diff)
	log.Error().Msgf("EXPECTED %s: {%s}", want.Type, want.Message)
	log.Error().Msgf("RECEIVED %s: {%s}", got.Type, got.Message)
	return mismatch
}

// respond sends the next reply. A completed status is followed immediately by the
// next response entry, before any further client frame is read.
func (e *Engine) respond(w io.Writer) error {
	entry, err := e.takeResponse()
	if err != nil {
		return err
	}
	if err := e.send(w, entry); err != nil {
		return err
	}
	if !isCompleted(entry) {
		return nil
	}
	result, err := e.takeResponse()
	if err != nil {
		return fmt.Errorf("%w: completed status at response index=%d is not followed by a result", ErrProtocolInvariant, e.reply-1)
	}
	return e.send(w, result)
}

func (e *Engine) takeResponse() (trace.Entry, error) {
	if e.reply >= e.responses.Len() {
		return trace.Entry{}, fmt.Errorf("%w: response trace exhausted at index=%d", ErrProtocolInvariant, e.reply)
	}
	entry := e.responses.At(e.reply)
	e.reply++
	return entry, nil
}

func (e *Engine) send(w io.Writer, entry trace.Entry) error {
	tag, payload, err := schema.Encode(entry.Message)
	if err != nil {
		return fmt.Errorf("session: encode response index=%d: %w", e.reply-1, err)
	}
	if d, ok := w.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout))
	}
	if err := frame.WriteFrame(w, frame.New(tag, payload), e.cfg.Limits); err != nil {
		return ioError(fmt.Sprintf("write response index=%d", e.reply-1), err)
	}
	e.sent++
	observability.RecordFrame("send", entry.Type.String())
	log.Debug().Msgf("session.Engine send session=%s message_type=%s len=%d", e.id, entry.Type, len(payload))
	return nil
}

func isCompleted(entry trace.Entry) bool {
	status, ok := entry.Message.(*schema.Status)
	return ok && status.Completed()
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

type closeWriter interface {
	CloseWrite() error
}

// closeOnce half-closes when supported so the peer sees an orderly shutdown, then closes.
func closeOnce(conn io.Closer) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if cw, ok := conn.(closeWriter); ok {
				_ = cw.CloseWrite()
			}
			_ = conn.Close()
		})
	}
}
