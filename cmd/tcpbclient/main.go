package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/tcpbmock/internal/client"
	"github.com/danmuck/tcpbmock/internal/logging"
	"github.com/danmuck/tcpbmock/internal/protocol/schema"
	"github.com/rs/zerolog/log"
)

type options struct {
	addr    string
	mode    string
	job     string
	record  string
	timeout time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", "127.0.0.1:56789", "TCPB server address")
	flag.StringVar(&opts.mode, "mode", "available", "mode: available | energy | gradient | forces")
	flag.StringVar(&opts.job, "job", "", "job TOML file (energy, gradient, forces)")
	flag.StringVar(&opts.record, "record", "", "directory for client_sent.bin and client_recv.bin")
	flag.DurationVar(&opts.timeout, "timeout", time.Minute, "overall deadline")
	flag.Parse()
	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Error().Msgf("tcpbclient: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, w io.Writer) error {
	var input *schema.JobInput
	if opts.mode != "available" {
		if opts.job == "" {
			return fmt.Errorf("mode %q requires -job", opts.mode)
		}
		var err error
		if input, err = loadJobInput(opts.job); err != nil {
			return err
		}
	}

	cfg := client.DefaultConfig()
	cfg.Address = opts.addr
	cfg.RecordDir = opts.record
	c, err := client.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	switch opts.mode {
	case "available":
		ok, err := c.IsAvailable(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "available=%t\n", ok)
	case "energy":
		energy, out, err := c.ComputeEnergy(ctx, input)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "energy=%.10f job_dir=%s\n", energy, out.JobDir)
	case "gradient", "forces":
		compute := c.ComputeGradient
		if opts.mode == "forces" {
			compute = c.ComputeForces
		}
		energy, values, out, err := compute(ctx, input)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "energy=%.10f job_dir=%s\n", energy, out.JobDir)
		for i := 0; i+2 < len(values); i += 3 {
			fmt.Fprintf(w, "%s %14.10f %14.10f %14.10f\n", input.Mol.Atoms[i/3], values[i], values[i+1], values[i+2])
		}
	default:
		return fmt.Errorf("unknown mode %q (supported: available, energy, gradient, forces)", opts.mode)
	}
	return nil
}
