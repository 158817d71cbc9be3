// Package client speaks TCPB to a job server: availability checks, job
// submission, completion polling and result retrieval.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/tcpbmock/internal/protocol/frame"
	"github.com/danmuck/tcpbmock/internal/protocol/schema"
	"github.com/danmuck/tcpbmock/internal/protocol/session"
	"github.com/danmuck/tcpbmock/internal/trace"
	"github.com/rs/zerolog/log"
)

const (
	SentTraceFile = "client_sent.bin"
	RecvTraceFile = "client_recv.bin"
)

var (
	ErrAddressRequired   = errors.New("client: address required")
	ErrUnexpectedMessage = errors.New("client: unexpected message")
	ErrInvalidJobStatus  = errors.New("client: no valid job status received")
	ErrEmptyJobOutput    = errors.New("client: empty job output")
	ErrJobRejected       = errors.New("client: job not accepted")
)

type Config struct {
	Address string
	Session session.Config
	// RecordDir, when set, receives client_sent.bin and client_recv.bin for the connection.
	RecordDir string
	// MaxSubmitAttempts bounds ComputeJobSync resubmission; 0 retries until ctx ends.
	MaxSubmitAttempts int
}

func DefaultConfig() Config {
	return Config{Session: session.DefaultConfig()}
}

// Job identifies the job the server accepted most recently.
type Job struct {
	Dir    string
	ScrDir string
	ID     int32
}

type Client struct {
	cfg  Config
	conn net.Conn
	rng  *rand.Rand

	sent *trace.Recorder
	recv *trace.Recorder

	job Job
}

// Dial connects to cfg.Address and opens trace recorders when RecordDir is set.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	cfg.Session = cfg.Session.WithDefaults()
	dialer := net.Dialer{Timeout: cfg.Session.AcceptTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", cfg.Address, err)
	}
	c := &Client{
		cfg:  cfg,
		conn: conn,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		job:  Job{ID: -1},
	}
	if cfg.RecordDir != "" {
		if c.sent, err = trace.OpenRecorder(filepath.Join(cfg.RecordDir, SentTraceFile)); err != nil {
			_ = conn.Close()
			return nil, err
		}
		if c.recv, err = trace.OpenRecorder(filepath.Join(cfg.RecordDir, RecvTraceFile)); err != nil {
			_ = c.sent.Close()
			_ = conn.Close()
			return nil, err
		}
	}
	log.Debug().Msgf("client.Dial connected addr=%q record_dir=%q", cfg.Address, cfg.RecordDir)
	return c, nil
}

// Job returns the server-side job of the last accepted submission.
func (c *Client) Job() Job {
	return c.job
}

// IsAvailable sends an empty status and reports whether the server is idle.
func (c *Client) IsAvailable(ctx context.Context) (bool, error) {
	status, err := c.exchangeStatus(ctx, &schema.Status{}, "IsAvailable")
	if err != nil {
		return false, err
	}
	return !status.Busy, nil
}

// SendJobAsync submits input and reports whether the server accepted it.
func (c *Client) SendJobAsync(ctx context.Context, input *schema.JobInput) (bool, error) {
	status, err := c.exchangeStatus(ctx, input, "SendJobAsync")
	if err != nil {
		return false, err
	}
	if status.JobStatus != schema.JobStatusAccepted {
		return false, nil
	}
	c.job = Job{Dir: status.JobDir, ScrDir: status.JobScrDir, ID: status.ServerJobID}
	log.Debug().Msgf("client.SendJobAsync accepted job_id=%d job_dir=%q", c.job.ID, c.job.Dir)
	return true, nil
}

// CheckJobComplete polls once. A completed reply is followed by the job output,
// which RecvJobAsync must read next.
func (c *Client) CheckJobComplete(ctx context.Context) (bool, error) {
	status, err := c.exchangeStatus(ctx, &schema.Status{}, "CheckJobComplete")
	if err != nil {
		return false, err
	}
	switch status.JobStatus {
	case schema.JobStatusWorking:
		return false, nil
	case schema.JobStatusCompleted:
		return true, nil
	default:
		return false, fmt.Errorf("%w: CheckJobComplete got job_status=%s job_id=%d", ErrInvalidJobStatus, status.JobStatus, c.job.ID)
	}
}

// RecvJobAsync reads the job output that follows a completed status.
func (c *Client) RecvJobAsync(ctx context.Context) (*schema.JobOutput, error) {
	msg, size, err := c.receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: RecvJobAsync: %w", err)
	}
	out, ok := msg.(*schema.JobOutput)
	if !ok {
		return nil, fmt.Errorf("%w: RecvJobAsync want %s got %s", ErrUnexpectedMessage, schema.MsgJobOutput, msg.Type())
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: job_id=%d", ErrEmptyJobOutput, c.job.ID)
	}
	return out, nil
}

// ComputeJobSync submits until accepted, polls until complete and returns the output.
func (c *Client) ComputeJobSync(ctx context.Context, input *schema.JobInput) (*schema.JobOutput, error) {
	for attempt := 1; ; attempt++ {
		accepted, err := c.SendJobAsync(ctx, input)
		if err != nil {
			return nil, err
		}
		if accepted {
			break
		}
		if c.cfg.MaxSubmitAttempts > 0 && attempt >= c.cfg.MaxSubmitAttempts {
			return nil, fmt.Errorf("%w: after %d attempts", ErrJobRejected, attempt)
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
	for attempt := 1; ; attempt++ {
		done, err := c.CheckJobComplete(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
	out, err := c.RecvJobAsync(ctx)
	if err != nil {
		return nil, err
	}
	c.job = Job{ID: -1}
	return out, nil
}

// ComputeEnergy runs input as an energy job.
func (c *Client) ComputeEnergy(ctx context.Context, input *schema.JobInput) (float64, *schema.JobOutput, error) {
	out, err := c.ComputeJobSync(ctx, withRun(input, schema.RunEnergy))
	if err != nil {
		return 0, nil, err
	}
	if len(out.Energy) == 0 {
		return 0, out, fmt.Errorf("%w: job output has no energy", ErrUnexpectedMessage)
	}
	return out.Energy[0], out, nil
}

// ComputeGradient runs input as a gradient job.
func (c *Client) ComputeGradient(ctx context.Context, input *schema.JobInput) (float64, []float64, *schema.JobOutput, error) {
	out, err := c.ComputeJobSync(ctx, withRun(input, schema.RunGradient))
	if err != nil {
		return 0, nil, nil, err
	}
	if len(out.Energy) == 0 {
		return 0, nil, out, fmt.Errorf("%w: job output has no energy", ErrUnexpectedMessage)
	}
	gradient := append([]float64(nil), out.Gradient...)
	return out.Energy[0], gradient, out, nil
}

// ComputeForces is ComputeGradient with the gradient negated.
func (c *Client) ComputeForces(ctx context.Context, input *schema.JobInput) (float64, []float64, *schema.JobOutput, error) {
	energy, gradient, out, err := c.ComputeGradient(ctx, input)
	if err != nil {
		return 0, nil, out, err
	}
	for i := range gradient {
		gradient[i] = -gradient[i]
	}
	return energy, gradient, out, nil
}

// Close flushes recorders and closes the connection.
func (c *Client) Close() error {
	var errs []error
	if c.sent != nil {
		errs = append(errs, c.sent.Close())
	}
	if c.recv != nil {
		errs = append(errs, c.recv.Close())
	}
	errs = append(errs, c.conn.Close())
	return errors.Join(errs...)
}

func (c *Client) exchangeStatus(ctx context.Context, req schema.Message, op string) (*schema.Status, error) {
	if err := c.send(ctx, req); err != nil {
		return nil, fmt.Errorf("client: %s: %w", op, err)
	}
	msg, _, err := c.receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: %s: %w", op, err)
	}
	status, ok := msg.(*schema.Status)
	if !ok {
		return nil, fmt.Errorf("%w: %s want %s got %s", ErrUnexpectedMessage, op, schema.MsgStatus, msg.Type())
	}
	return status, nil
}

func (c *Client) send(ctx context.Context, msg schema.Message) error {
	tag, payload, err := schema.Encode(msg)
	if err != nil {
		return err
	}
	fr := frame.New(tag, payload)
	if err := c.setWriteDeadline(ctx); err != nil {
		return err
	}
	if err := frame.WriteFrame(c.conn, fr, c.cfg.Session.Limits); err != nil {
		return err
	}
	if c.sent != nil {
		return c.sent.Record(fr)
	}
	return nil
}

func (c *Client) receive(ctx context.Context) (schema.Message, int, error) {
	if err := c.setReadDeadline(ctx); err != nil {
		return nil, 0, err
	}
	fr, err := frame.ReadFrame(c.conn, c.cfg.Session.Limits)
	if err != nil {
		return nil, 0, err
	}
	if c.recv != nil {
		if err := c.recv.Record(fr); err != nil {
			return nil, 0, err
		}
	}
	msg, err := schema.Decode(fr.Header.MessageType, fr.Payload)
	if err != nil {
		return nil, 0, err
	}
	return msg, len(fr.Payload), nil
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	var budget time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		if budget = time.Until(deadline); budget <= 0 {
			return context.DeadlineExceeded
		}
	}
	delay := session.PollDelay(c.cfg.Session.Backoff, attempt, c.rng, budget)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) setWriteDeadline(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.Session.WriteTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return c.conn.SetWriteDeadline(deadline)
}

func (c *Client) setReadDeadline(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.Session.ReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return c.conn.SetReadDeadline(deadline)
}

func withRun(input *schema.JobInput, run schema.RunType) *schema.JobInput {
	cp := *input
	cp.Run = run
	return &cp
}
