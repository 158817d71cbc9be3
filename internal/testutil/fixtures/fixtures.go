// Package fixtures builds canonical trace pairs for tests.
package fixtures

import (
	"path/filepath"
	"testing"

	"github.com/danmuck/tcpbmock/internal/protocol/schema"
	"github.com/danmuck/tcpbmock/internal/trace"
)

const (
	ExpectedFile = "client_sent.bin"
	ResponseFile = "client_recv.bin"
	JobDir       = "/scratch/server_56789/job_1"
	JobScrDir    = "/scratch/server_56789/job_1/scr"
)

// Pair is one recorded session: what the client sends and what the server replies.
type Pair struct {
	Expected trace.Trace
	Response trace.Trace
}

func Water() *schema.Mol {
	return &schema.Mol{
		Atoms: []string{"O", "H", "H"},
		Xyz: []float64{
			0.00000, 0.00000, -0.12948,
			0.00000, -1.49419, 1.02744,
			0.00000, 1.49419, 1.02744,
		},
		Multiplicity: 1,
		Closed:       true,
		Restricted:   true,
	}
}

func JobInput(run schema.RunType) *schema.JobInput {
	return &schema.JobInput{
		Mol:    Water(),
		Run:    run,
		Method: 4,
		Basis:  "6-31g",
	}
}

func JobOutput() *schema.JobOutput {
	return &schema.JobOutput{
		Mol:    Water(),
		Energy: []float64{-76.300505},
		Gradient: []float64{
			0.0000002903, 0.0000000722, -0.033101313,
			-0.0000000608, -0.0141756697, 0.016550727,
			-0.0000002294, 0.0141755976, 0.016550585,
		},
		JobDir:      JobDir,
		JobScrDir:   JobScrDir,
		ServerJobID: 1,
	}
}

// Query is the empty status a client sends to poll.
func Query() *schema.Status {
	return &schema.Status{}
}

func Reply(js schema.JobStatus) *schema.Status {
	s := &schema.Status{Busy: true, JobStatus: js}
	if js != schema.JobStatusUnset {
		s.JobDir = JobDir
		s.JobScrDir = JobScrDir
		s.ServerJobID = 1
	}
	return s
}

// SingleJob: one job input answered by completed status plus output.
func SingleJob() Pair {
	return Pair{
		Expected: trace.New(JobInput(schema.RunEnergy)),
		Response: trace.New(Reply(schema.JobStatusCompleted), JobOutput()),
	}
}

// Polling: two status queries answered by two in-progress replies.
func Polling() Pair {
	return Pair{
		Expected: trace.New(Query(), Query()),
		Response: trace.New(Reply(schema.JobStatusWorking), Reply(schema.JobStatusWorking)),
	}
}

// EnergyJob: availability check, submission, two polls, completion.
func EnergyJob() Pair {
	return Pair{
		Expected: trace.New(
			Query(),
			JobInput(schema.RunEnergy),
			Query(),
			Query(),
			Query(),
		),
		Response: trace.New(
			&schema.Status{},
			Reply(schema.JobStatusAccepted),
			Reply(schema.JobStatusWorking),
			Reply(schema.JobStatusWorking),
			Reply(schema.JobStatusCompleted),
			JobOutput(),
		),
	}
}

// WriteFiles persists p under dir and returns the expected and response paths.
func WriteFiles(t testing.TB, dir string, p Pair) (string, string) {
	t.Helper()
	expected := filepath.Join(dir, ExpectedFile)
	response := filepath.Join(dir, ResponseFile)
	if err := p.Expected.WriteFile(expected); err != nil {
		t.Fatalf("write expected trace: %v", err)
	}
	if err := p.Response.WriteFile(response); err != nil {
		t.Fatalf("write response trace: %v", err)
	}
	return expected, response
}
