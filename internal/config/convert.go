package config

import (
	"github.com/danmuck/tcpbmock/internal/mockserver"
	"github.com/danmuck/tcpbmock/internal/protocol/session"
)

// ServerConfig builds a mock server config for f. port overrides f.Port when non-zero.
func ServerConfig(f FixtureConfig, port int, sess session.Config) mockserver.Config {
	if port == 0 {
		port = f.Port
	}
	return mockserver.Config{
		Port:          port,
		ExpectedTrace: f.Expected,
		ResponseTrace: f.Response,
		Session:       sess,
	}
}
