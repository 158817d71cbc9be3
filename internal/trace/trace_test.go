package trace

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/tcpbmock/internal/protocol/frame"
	"github.com/danmuck/tcpbmock/internal/protocol/schema"
	"github.com/danmuck/tcpbmock/internal/testutil/testlog"
)

func sampleTrace() Trace {
	return New(
		&schema.Status{},
		&schema.JobInput{
			Mol:   &schema.Mol{Atoms: []string{"H", "H"}, Xyz: []float64{0, 0, 0, 0, 0, 1.4}, Multiplicity: 1},
			Basis: "sto-3g",
		},
		&schema.Status{Busy: true, JobStatus: schema.JobStatusCompleted, ServerJobID: 2},
		&schema.JobOutput{Energy: []float64{-1.117}},
	)
}

func TestLoadRoundTripIsByteExact(t *testing.T) {
	testlog.Start(t)
	raw := sampleTrace().Encode()
	loaded, err := Load(raw)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != 4 {
		t.Fatalf("unexpected entries: %d", loaded.Len())
	}
	if !bytes.Equal(loaded.Encode(), raw) {
		t.Fatalf("re-encoded trace differs from source")
	}
}

func TestLoadPreservesOrderAndOffsets(t *testing.T) {
	testlog.Start(t)
	want := sampleTrace()
	loaded, err := Load(want.Encode())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := 0; i < want.Len(); i++ {
		got := loaded.At(i)
		if got.Type != want.At(i).Type || got.Offset != want.At(i).Offset {
			t.Fatalf("entry %d got type=%s offset=%d want type=%s offset=%d",
				i, got.Type, got.Offset, want.At(i).Type, want.At(i).Offset)
		}
		if !schema.Equal(got.Message, want.At(i).Message) {
			t.Fatalf("entry %d message mismatch", i)
		}
	}
	if loaded.At(0).Offset != 0 || loaded.At(1).Offset != frame.HeaderLen {
		t.Fatalf("unexpected leading offsets: %d %d", loaded.At(0).Offset, loaded.At(1).Offset)
	}
}

func TestLoadEmpty(t *testing.T) {
	testlog.Start(t)
	loaded, err := Load(nil)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if loaded.Len() != 0 {
		t.Fatalf("expected empty trace")
	}
}

func TestLoadTruncatedMidHeader(t *testing.T) {
	testlog.Start(t)
	raw := sampleTrace().Encode()
	first := frame.HeaderLen + len(sampleTrace().At(0).Message.Marshal())
	_, err := Load(raw[:first+3])
	if !errors.Is(err, ErrTruncatedTrace) {
		t.Fatalf("expected ErrTruncatedTrace, got %v", err)
	}
}

func TestLoadTruncatedMidPayload(t *testing.T) {
	testlog.Start(t)
	raw := sampleTrace().Encode()
	_, err := Load(raw[:len(raw)-1])
	if !errors.Is(err, ErrTruncatedTrace) {
		t.Fatalf("expected ErrTruncatedTrace, got %v", err)
	}
}

func TestLoadUnknownMessageType(t *testing.T) {
	testlog.Start(t)
	raw := frame.Append(nil, frame.New(7, nil))
	_, err := Load(raw)
	if !errors.Is(err, schema.ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestLoadMalformedPayload(t *testing.T) {
	testlog.Start(t)
	raw := frame.Append(nil, frame.New(uint32(schema.MsgMol), []byte{0x0A, 0x09}))
	_, err := Load(raw)
	if !errors.Is(err, schema.ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestLoadFileAndWriteFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "client_recv.bin")
	if err := sampleTrace().WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if loaded.Source() != path || loaded.Len() != 4 {
		t.Fatalf("unexpected trace source=%q len=%d", loaded.Source(), loaded.Len())
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.bin")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestRecorderProducesLoadableTrace(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "client_sent.bin")
	rec, err := OpenRecorder(path)
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	want := sampleTrace()
	for _, e := range want.Entries() {
		if err := rec.RecordMessage(e.Message); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if rec.Frames() != want.Len() {
		t.Fatalf("recorded frames=%d want=%d", rec.Frames(), want.Len())
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(raw, want.Encode()) {
		t.Fatalf("recorded bytes differ from encoded trace")
	}
}
