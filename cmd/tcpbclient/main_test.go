package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/tcpbmock/internal/mockserver"
	"github.com/danmuck/tcpbmock/internal/protocol/schema"
	"github.com/danmuck/tcpbmock/internal/testutil/fixtures"
	"github.com/danmuck/tcpbmock/internal/testutil/testlog"
	"github.com/danmuck/tcpbmock/internal/trace"
)

const waterJob = `run = "energy"
method = 4
basis = "6-31g"
atoms = ["O", "H", "H"]
xyz = [0.0, 0.0, -0.12948, 0.0, -1.49419, 1.02744, 0.0, 1.49419, 1.02744]
closed = true
restricted = true
`

func writeJob(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write job: %v", err)
	}
	return path
}

func TestLoadJobInputMatchesFixture(t *testing.T) {
	testlog.Start(t)
	input, err := loadJobInput(writeJob(t, waterJob))
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if !schema.Equal(input, fixtures.JobInput(schema.RunEnergy)) {
		t.Fatalf("job input differs from fixture:\n%s\n%s", input, fixtures.JobInput(schema.RunEnergy))
	}
}

func TestLoadJobInputRejectsBadGeometry(t *testing.T) {
	testlog.Start(t)
	body := strings.Replace(waterJob, "1.02744]", "]", 1)
	if _, err := loadJobInput(writeJob(t, body)); err == nil {
		t.Fatalf("expected xyz length error")
	}
	if _, err := loadJobInput(writeJob(t, strings.Replace(waterJob, `"energy"`, `"md"`, 1))); err == nil {
		t.Fatalf("expected run type error")
	}
}

func TestRunGradientAgainstMock(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	pair := fixtures.Pair{
		Expected: trace.New(fixtures.JobInput(schema.RunGradient), fixtures.Query()),
		Response: trace.New(
			fixtures.Reply(schema.JobStatusAccepted),
			fixtures.Reply(schema.JobStatusCompleted),
			fixtures.JobOutput(),
		),
	}
	srv, err := mockserver.NewWithTraces(mockserver.Config{Port: port}, pair.Expected, pair.Response)
	if err != nil {
		t.Fatalf("new mock: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start mock: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	opts := options{
		addr: net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		mode: "gradient",
		job:  writeJob(t, waterJob),
	}
	if err := run(ctx, opts, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "energy=-76.3005050000") || strings.Count(out.String(), "\n") != 4 {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if _, err := srv.Wait(ctx); err != nil {
		t.Fatalf("mock session: %v", err)
	}
}
