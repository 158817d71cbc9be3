package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/tcpbmock/internal/config"
	"github.com/danmuck/tcpbmock/internal/protocol/session"
)

const defaultPort = 56789

type fileConfig struct {
	Port          int      `toml:"port"`
	Expected      string   `toml:"expected"`
	Response      string   `toml:"response"`
	Fixture       string   `toml:"fixture"`
	ReadTimeout   string   `toml:"read_timeout"`
	WriteTimeout  string   `toml:"write_timeout"`
	AcceptTimeout string   `toml:"accept_timeout"`
	Sessions      int      `toml:"sessions"`
	AdminAddr     string   `toml:"admin_addr"`
	CORSOrigins   []string `toml:"cors_origins"`
	LogLevel      string   `toml:"log_level"`
}

type serviceConfig struct {
	Port     int
	Expected string
	Response string
	Fixture  string
	// Sessions is the number of sequential clients to serve; 0 serves until interrupted.
	Sessions    int
	AdminAddr   string
	CORSOrigins []string
	LogLevel    string
	Session     session.Config
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Port:     defaultPort,
		Expected: config.DefaultExpectedFile,
		Response: config.DefaultResponseFile,
		Sessions: 1,
		Session:  session.DefaultConfig(),
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load tcpbmock config: %w", err)
	}

	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	base := filepath.Dir(path)
	if meta.IsDefined("expected") {
		cfg.Expected = relativeTo(base, raw.Expected)
	}
	if meta.IsDefined("response") {
		cfg.Response = relativeTo(base, raw.Response)
	}
	if meta.IsDefined("fixture") {
		cfg.Fixture = relativeTo(base, raw.Fixture)
	}
	if meta.IsDefined("read_timeout") {
		if cfg.Session.ReadTimeout, err = parseTimeout("read_timeout", raw.ReadTimeout); err != nil {
			return serviceConfig{}, err
		}
	}
	if meta.IsDefined("write_timeout") {
		if cfg.Session.WriteTimeout, err = parseTimeout("write_timeout", raw.WriteTimeout); err != nil {
			return serviceConfig{}, err
		}
	}
	if meta.IsDefined("accept_timeout") {
		if cfg.Session.AcceptTimeout, err = parseTimeout("accept_timeout", raw.AcceptTimeout); err != nil {
			return serviceConfig{}, err
		}
	}
	if meta.IsDefined("sessions") {
		if raw.Sessions < 0 {
			return serviceConfig{}, fmt.Errorf("sessions must be >= 0, got %d", raw.Sessions)
		}
		cfg.Sessions = raw.Sessions
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}

// applyFixture replaces trace paths (and the port, if set) from the fixture manifest.
func applyFixture(cfg serviceConfig) (serviceConfig, error) {
	if cfg.Fixture == "" {
		return cfg, nil
	}
	f, err := config.LoadFixture(cfg.Fixture)
	if err != nil {
		return serviceConfig{}, err
	}
	cfg.Expected = f.Expected
	cfg.Response = f.Response
	if f.Port != 0 {
		cfg.Port = f.Port
	}
	return cfg, nil
}

func relativeTo(base, raw string) string {
	p := strings.TrimSpace(raw)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func parseTimeout(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
