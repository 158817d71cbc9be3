package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/tcpbmock/internal/logging"
	"github.com/danmuck/tcpbmock/internal/mockserver"
	"github.com/danmuck/tcpbmock/internal/observability"
	"github.com/danmuck/tcpbmock/internal/protocol/session"
	"github.com/danmuck/tcpbmock/internal/trace"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var errSessionsFailed = errors.New("one or more sessions failed")

func main() {
	cfgPath := flag.String("config", "", "tcpbmock TOML config")
	port := flag.Int("port", 0, "port to serve on (overrides config)")
	expected := flag.String("expected", "", "expected client trace (overrides config)")
	response := flag.String("response", "", "response trace (overrides config)")
	fixture := flag.String("fixture", "", "fixture manifest (overrides config)")
	sessions := flag.Int("sessions", -1, "sequential sessions to serve, 0 until interrupted (overrides config)")
	admin := flag.String("admin", "", "admin HTTP listen address (overrides config)")
	flag.Parse()

	cfg := defaultServiceConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = loadServiceConfig(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "tcpbmock: %v\n", err)
			os.Exit(1)
		}
	}
	if *fixture != "" {
		cfg.Fixture = *fixture
	}
	cfg, err := applyFixture(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tcpbmock: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *expected != "" {
		cfg.Expected = *expected
	}
	if *response != "" {
		cfg.Response = *response
	}
	if *sessions >= 0 {
		cfg.Sessions = *sessions
	}
	if *admin != "" {
		cfg.AdminAddr = *admin
	}

	logCfg := logging.ProfileConfig(logging.ProfileRuntime)
	if cfg.LogLevel != "" {
		if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
			logCfg.Level = lvl
		}
	}
	observability.InitLogger("tcpbmock", logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "tcpbmock: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serviceConfig) error {
	if err := mockserver.ValidatePort(cfg.Port); err != nil {
		return err
	}
	expected, err := trace.LoadFile(cfg.Expected)
	if err != nil {
		return err
	}
	responses, err := trace.LoadFile(cfg.Response)
	if err != nil {
		return err
	}
	if err := session.Validate(expected, responses); err != nil {
		return err
	}
	log.Info().Msgf("tcpbmock loaded expected=%q entries=%d response=%q entries=%d",
		cfg.Expected, expected.Len(), cfg.Response, responses.Len())

	book := observability.NewSessionBook(0)
	if cfg.AdminAddr != "" {
		shutdown := serveAdmin(cfg, book)
		defer shutdown()
	}

	failed := 0
	for n := 0; cfg.Sessions == 0 || n < cfg.Sessions; n++ {
		if ctx.Err() != nil {
			break
		}
		out, err := serveOne(ctx, cfg, expected, responses)
		if ctx.Err() != nil {
			break
		}
		if cfg.Sessions == 0 && idleAccept(out, err) {
			log.Debug().Msgf("tcpbmock no client within accept timeout, listening again port=%d", cfg.Port)
			n--
			continue
		}
		book.Add(sessionRecord(cfg.Port, out))
		if err != nil {
			failed++
			log.Error().Msgf("tcpbmock session=%d id=%s failed: %v", n+1, out.SessionID, err)
			continue
		}
		log.Info().Msgf("tcpbmock session=%d id=%s done received=%d sent=%d duration=%s",
			n+1, out.SessionID, out.Received, out.Sent, out.Duration())
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d", errSessionsFailed, failed)
	}
	return nil
}

// idleAccept reports an accept timeout with no client traffic.
func idleAccept(out session.Outcome, err error) bool {
	return errors.Is(err, session.ErrTimeout) && out.Received == 0 && out.Sent == 0
}

func serveOne(ctx context.Context, cfg serviceConfig, expected, responses trace.Trace) (session.Outcome, error) {
	srv, err := mockserver.NewWithTraces(mockserver.Config{Port: cfg.Port, Session: cfg.Session}, expected, responses)
	if err != nil {
		return session.Outcome{}, err
	}
	if err := srv.Start(); err != nil {
		return session.Outcome{}, err
	}
	defer srv.Close()

	stop := context.AfterFunc(ctx, func() { _ = srv.Close() })
	defer stop()
	return srv.Wait(context.Background())
}

func serveAdmin(cfg serviceConfig, book *observability.SessionBook) func() {
	gin.SetMode(gin.ReleaseMode)
	router := observability.NewAdminRouter(observability.AdminConfig{
		Node:        "tcpbmock",
		CORSOrigins: cfg.CORSOrigins,
	}, book)
	srv := &http.Server{Addr: cfg.AdminAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Warn().Msgf("tcpbmock admin listening addr=%q", cfg.AdminAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Msgf("tcpbmock admin failed: %v", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func sessionRecord(port int, out session.Outcome) observability.SessionRecord {
	rec := observability.SessionRecord{
		ID:       out.SessionID,
		Port:     port,
		State:    out.State.String(),
		Received: out.Received,
		Sent:     out.Sent,
		Started:  out.Started,
		Duration: out.Duration(),
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	return rec
}
