package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/emertechie/vic-viewer/internal/source"
)

// Data modes.
const (
	ModeVicStack = "vicstack"
	ModeFake     = "fake"
)

type APIConfig struct {
	Host string `yaml:"host"` // listen host, default 0.0.0.0
	Port int    `yaml:"port"` // default 4319
}

type VictoriaConfig struct {
	URL     string        `yaml:"url"`     // http://localhost:9428
	Timeout time.Duration `yaml:"timeout"` // per upstream request
}

type FakeConfig struct {
	Profile  string        `yaml:"profile"` // steady | bursty | noisy
	Seed     string        `yaml:"seed"`
	Lookback time.Duration `yaml:"lookback"` // how far back the timeline reaches
}

type LogsConfig struct {
	Mode string `yaml:"mode"` // vicstack | fake
	// CursorDebugRaw returns cursors as plain JSON objects instead of tokens.
	CursorDebugRaw bool `yaml:"cursor_debug_raw"`
}

type ProfileConfig struct {
	Path string `yaml:"path"` // empty means the built-in fallback profile
	ID   string `yaml:"id"`   // expected profile id, optional
}

type LogConfig struct {
	Format string `yaml:"format"` // text | json
	Level  string `yaml:"level"`  // debug | info | warn | error
}

type Config struct {
	API      APIConfig      `yaml:"api"`
	Logs     LogsConfig     `yaml:"logs"`
	Victoria VictoriaConfig `yaml:"victoria"`
	Fake     FakeConfig     `yaml:"fake"`
	Profile  ProfileConfig  `yaml:"profile"`
	Log      LogConfig      `yaml:"log"`
}

func Default() Config {
	return Config{
		API:      APIConfig{Host: "0.0.0.0", Port: 4319},
		Logs:     LogsConfig{Mode: ModeVicStack},
		Victoria: VictoriaConfig{URL: "http://localhost:9428", Timeout: source.DefaultTimeout},
		Fake:     FakeConfig{Profile: string(source.Steady), Seed: source.DefaultSyntheticSeed, Lookback: source.DefaultLookback},
		Log:      LogConfig{Format: "text", Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults (an empty path skips the
// file), applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := c.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("API_HOST", &c.API.Host)
	str("VICTORIA_LOGS_URL", &c.Victoria.URL)
	str("LOGS_DATA_MODE", &c.Logs.Mode)
	str("FAKE_LOGS_PROFILE", &c.Fake.Profile)
	str("FAKE_LOGS_SEED", &c.Fake.Seed)
	str("LOG_PROFILE_PATH", &c.Profile.Path)
	str("LOG_PROFILE_ID", &c.Profile.ID)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("API_PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("API_PORT: %w", err)
		}
		c.API.Port = n
	}
	if v, ok := lookup("VICSTACK_TIMEOUT_MS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VICSTACK_TIMEOUT_MS: %w", err)
		}
		c.Victoria.Timeout = time.Duration(n) * time.Millisecond
	}
	if v, ok := lookup("LOGS_CURSOR_DEBUG_RAW"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "0", "false", "no":
			c.Logs.CursorDebugRaw = false
		case "1", "true", "yes":
			c.Logs.CursorDebugRaw = true
		default:
			return fmt.Errorf("LOGS_CURSOR_DEBUG_RAW: unexpected value %q", v)
		}
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	switch c.Logs.Mode {
	case ModeVicStack:
		u, err := url.Parse(c.Victoria.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("victoria.url %q is not an http(s) url", c.Victoria.URL))
		}
	case ModeFake:
	default:
		errs = append(errs, fmt.Errorf("logs.mode must be %q or %q, got %q", ModeVicStack, ModeFake, c.Logs.Mode))
	}
	if c.Victoria.Timeout <= 0 {
		errs = append(errs, errors.New("victoria.timeout must be positive"))
	}
	if _, err := source.ParseSyntheticProfile(c.Fake.Profile); err != nil {
		errs = append(errs, fmt.Errorf("fake.profile: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Profile.ID != "" && c.Profile.Path == "" {
		errs = append(errs, errors.New("profile.id requires profile.path"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

func (c Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.Log.Level))
	return lvl, err
}
