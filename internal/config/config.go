package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultExpectedFile = "client_sent.bin"
	DefaultResponseFile = "client_recv.bin"
)

// FixtureConfig names one recorded session: a trace pair and the port to serve it on.
// Trace paths are relative to the manifest that declares them.
type FixtureConfig struct {
	Name     string `toml:"name"`
	Port     int    `toml:"port"`
	Dir      string `toml:"dir"`
	Expected string `toml:"expected"`
	Response string `toml:"response"`
}

// SuiteConfig groups fixtures served one after another.
type SuiteConfig struct {
	Name     string          `toml:"name"`
	Fixtures []FixtureConfig `toml:"fixtures"`
}

func LoadFixture(path string) (FixtureConfig, error) {
	var cfg FixtureConfig
	if err := loadToml(path, &cfg); err != nil {
		return FixtureConfig{}, err
	}
	cfg = resolveFixture(cfg, filepath.Dir(path))
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := ValidateFixture(cfg); err != nil {
		return FixtureConfig{}, err
	}
	return cfg, nil
}

func LoadSuite(path string) (SuiteConfig, error) {
	var cfg SuiteConfig
	if err := loadToml(path, &cfg); err != nil {
		return SuiteConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "tcpbmock"
	}
	base := filepath.Dir(path)
	for i := range cfg.Fixtures {
		cfg.Fixtures[i] = resolveFixture(cfg.Fixtures[i], base)
	}
	if err := ValidateSuite(cfg); err != nil {
		return SuiteConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func resolveFixture(cfg FixtureConfig, base string) FixtureConfig {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = "."
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	cfg.Dir = dir
	if strings.TrimSpace(cfg.Expected) == "" {
		cfg.Expected = DefaultExpectedFile
	}
	if strings.TrimSpace(cfg.Response) == "" {
		cfg.Response = DefaultResponseFile
	}
	if !filepath.IsAbs(cfg.Expected) {
		cfg.Expected = filepath.Join(dir, cfg.Expected)
	}
	if !filepath.IsAbs(cfg.Response) {
		cfg.Response = filepath.Join(dir, cfg.Response)
	}
	return cfg
}

func ValidateFixture(cfg FixtureConfig) error {
	if cfg.Port != 0 && (cfg.Port < 1024 || cfg.Port > 65535) {
		return fmt.Errorf("fixture %q port %d out of range [1024, 65535]", cfg.Name, cfg.Port)
	}
	if strings.TrimSpace(cfg.Expected) == "" {
		return fmt.Errorf("fixture %q missing expected trace", cfg.Name)
	}
	if strings.TrimSpace(cfg.Response) == "" {
		return fmt.Errorf("fixture %q missing response trace", cfg.Name)
	}
	if filepath.Clean(cfg.Expected) == filepath.Clean(cfg.Response) {
		return fmt.Errorf("fixture %q uses the same file for expected and response traces", cfg.Name)
	}
	return nil
}

func ValidateSuite(cfg SuiteConfig) error {
	if len(cfg.Fixtures) == 0 {
		return fmt.Errorf("suite %q has no fixtures", cfg.Name)
	}
	seen := make(map[string]struct{}, len(cfg.Fixtures))
	for i, f := range cfg.Fixtures {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("fixture[%d] invalid: name is required", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("fixture[%d] invalid: duplicate name %q", i, f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := ValidateFixture(f); err != nil {
			return fmt.Errorf("fixture[%d] invalid: %w", i, err)
		}
	}
	return nil
}
