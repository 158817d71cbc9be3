package trace

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/danmuck/tcpbmock/internal/protocol/frame"
	"github.com/danmuck/tcpbmock/internal/protocol/schema"
)

// Recorder appends frames to a trace sink as they cross the wire.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	frames int
}

func NewRecorder(w io.Writer) *Recorder {
	r := &Recorder{w: w}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// OpenRecorder truncates or creates path and records into it.
func OpenRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace recorder open failed (%s): %w", path, err)
	}
	return NewRecorder(f), nil
}

// Record appends one raw frame.
func (r *Recorder) Record(f frame.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := frame.WriteFrame(r.w, f, frame.Limits{}); err != nil {
		return err
	}
	r.frames++
	return nil
}

// RecordMessage appends msg using its canonical encoding.
func (r *Recorder) RecordMessage(msg schema.Message) error {
	tag, payload, err := schema.Encode(msg)
	if err != nil {
		return err
	}
	return r.Record(frame.New(tag, payload))
}

func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
