package schema

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/danmuck/tcpbmock/internal/testutil/testlog"
)

func TestStatusCompletedWireBytes(t *testing.T) {
	testlog.Start(t)
	got := (&Status{JobStatus: JobStatusCompleted}).Marshal()
	want := []byte{0x20, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("status bytes got=%x want=%x", got, want)
	}
}

func TestDecodeEmptyStatusPayload(t *testing.T) {
	testlog.Start(t)
	msg, err := Decode(uint32(MsgStatus), nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	status, ok := msg.(*Status)
	if !ok {
		t.Fatalf("unexpected message %T", msg)
	}
	if status.Busy || status.JobStatus != JobStatusUnset {
		t.Fatalf("expected zero status, got %s", status)
	}
}

func TestDecodeUnknownMessageType(t *testing.T) {
	testlog.Start(t)
	_, err := Decode(9, []byte{0x08, 0x01})
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
	if MessageType(9).Known() {
		t.Fatalf("type 9 must not be known")
	}
}

func TestDecodeMalformedMessage(t *testing.T) {
	testlog.Start(t)
	cases := map[string]struct {
		tag     MessageType
		payload []byte
	}{
		"truncated mismatched": {MsgStatus, []byte{0x0A}},
		"truncated varint":   {MsgMol, []byte{0x20, 0xFF}},
		"truncated bytes":    {MsgJobInput, []byte{0x22, 0x05, 'a'}},
		"bad packed doubles": {MsgJobOutput, []byte{0x12, 0x03, 1, 2, 3}},
		"bad nested mol":     {MsgJobInput, []byte{0x0A, 0x01, 0xFF}},
	}
	for name, tc := range cases {
		if _, err := Decode(uint32(tc.tag), tc.payload); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("%s: expected ErrMalformedMessage, got %v", name, err)
		}
	}
}

func TestDecodeKeepsMismatchedWireTypeAsUnknown(t *testing.T) {
	testlog.Start(t)
	var payload []byte
	payload = protowire.AppendTag(payload, 5, protowire.VarintType)
	payload = protowire.AppendVarint(payload, 3)
	payload = protowire.AppendTag(payload, 6, protowire.BytesType)
	payload = protowire.AppendString(payload, "/scr")

	msg, err := Decode(uint32(MsgStatus), payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	status := msg.(*Status)
	if status.JobDir != "" || status.JobScrDir != "/scr" {
		t.Fatalf("unexpected fields job_dir=%q job_scr_dir=%q", status.JobDir, status.JobScrDir)
	}
	want := appendString(nil, 6, "/scr")
	want = append(want, payload[:2]...)
	if !bytes.Equal(status.Marshal(), want) {
		t.Fatalf("mismatched field not carried as unknown: %x", status.Marshal())
	}
}

func TestDecodeMergesRepeatedMol(t *testing.T) {
	testlog.Start(t)
	var payload []byte
	payload = appendMessage(payload, 1, (&Mol{Atoms: []string{"H"}, Charge: 2}).Marshal())
	payload = appendMessage(payload, 1, (&Mol{Atoms: []string{"H"}, Charge: 1}).Marshal())

	msg, err := Decode(uint32(MsgJobInput), payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	mol := msg.(*JobInput).Mol
	if mol == nil || len(mol.Atoms) != 2 || mol.Charge != 1 {
		t.Fatalf("expected merged mol atoms=[H H] charge=1, got %+v", mol)
	}
	if Equal(msg, &JobInput{Mol: &Mol{Charge: 1}}) {
		t.Fatalf("merged mol must not equal a mol without atoms")
	}

	out, err := Decode(uint32(MsgJobOutput), payload)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got := out.(*JobOutput).Mol; got == nil || len(got.Atoms) != 2 {
		t.Fatalf("expected merged output mol, got %+v", got)
	}
}

func TestMolReplaysUnlistedUnitValue(t *testing.T) {
	testlog.Start(t)
	in := &Mol{Atoms: []string{"He"}, Units: UnitType(7)}
	msg, err := Decode(uint32(MsgMol), in.Marshal())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := msg.(*Mol).Units; got != UnitType(7) {
		t.Fatalf("unit value changed: %d", got)
	}
	if !bytes.Equal(msg.Marshal(), in.Marshal()) {
		t.Fatalf("mol with unlisted unit did not round-trip")
	}
}

func TestJobInputRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := &JobInput{
		Mol: &Mol{
			Atoms:        []string{"O", "H", "H"},
			Xyz:          []float64{0, 0, -0.12948, 0, -1.49419, 1.02744, 0, 1.49419, 1.02744},
			Charge:       -1,
			Multiplicity: 2,
			Restricted:   true,
		},
		Run:         RunGradient,
		Method:      7,
		Basis:       "6-31g",
		UserOptions: []string{"maxit", "100"},
	}
	tag, payload, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if tag != uint32(MsgJobInput) {
		t.Fatalf("unexpected tag %d", tag)
	}
	out, err := Decode(tag, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := out.(*JobInput)
	if got.Mol == nil || got.Mol.Charge != -1 || len(got.Mol.Xyz) != 9 || got.Mol.Atoms[2] != "H" {
		t.Fatalf("mol mismatch: %s", got)
	}
	if got.Basis != "6-31g" || got.Run != RunGradient || got.Method != 7 {
		t.Fatalf("scalar mismatch: %s", got)
	}
	if !Equal(in, out) {
		t.Fatalf("round trip not equal:\n in=%s\nout=%s", in, out)
	}
}

func TestUnknownFieldsArePreserved(t *testing.T) {
	testlog.Start(t)
	raw := []byte{0x08, 0x01, 0x78, 0x05}
	msg, err := Decode(uint32(MsgStatus), raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(msg.Marshal(), raw) {
		t.Fatalf("re-encode got=%x want=%x", msg.Marshal(), raw)
	}
}

func TestOneofFalseIsPreserved(t *testing.T) {
	testlog.Start(t)
	raw := []byte{0x18, 0x00}
	msg, err := Decode(uint32(MsgStatus), raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	status := msg.(*Status)
	if status.JobStatus != JobStatusWorking {
		t.Fatalf("expected working variant, got %s", status.JobStatus)
	}
	if !bytes.Equal(status.Marshal(), raw) {
		t.Fatalf("re-encode got=%x want=%x", status.Marshal(), raw)
	}
}

func TestUnpackedDoublesDecode(t *testing.T) {
	testlog.Start(t)
	var raw []byte
	for _, v := range []float64{-76.3, 1.5} {
		raw = protowire.AppendTag(raw, 2, protowire.Fixed64Type)
		raw = protowire.AppendFixed64(raw, math.Float64bits(v))
	}
	msg, err := Decode(uint32(MsgJobOutput), raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out := msg.(*JobOutput)
	if len(out.Energy) != 2 || out.Energy[0] != -76.3 || out.Energy[1] != 1.5 {
		t.Fatalf("unexpected energy: %v", out.Energy)
	}
}

func TestEqualAndDiff(t *testing.T) {
	testlog.Start(t)
	a := &Status{JobStatus: JobStatusWorking, ServerJobID: 3}
	b := &Status{JobStatus: JobStatusWorking, ServerJobID: 3}
	c := &Status{JobStatus: JobStatusWorking, ServerJobID: 4}
	if !Equal(a, b) {
		t.Fatalf("expected equal")
	}
	if Equal(a, c) {
		t.Fatalf("expected content difference")
	}
	d, ok := Diff(a, c)
	if ok || d.Offset != 3 {
		t.Fatalf("unexpected diff: %s ok=%v", d, ok)
	}
	if Equal(a, &JobOutput{}) {
		t.Fatalf("expected type difference")
	}
	d, ok = Diff(a, &JobOutput{})
	if ok || d.Offset != -1 || d.ReceivedType != MsgJobOutput {
		t.Fatalf("unexpected type diff: %s", d)
	}
}

func TestMessageTypeString(t *testing.T) {
	testlog.Start(t)
	if MsgJobOutput.String() != "JOBOUTPUT" || MessageType(42).String() != "MessageType(42)" {
		t.Fatalf("unexpected names: %s %s", MsgJobOutput, MessageType(42))
	}
}
