package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NodePath81/slotprobe/internal/util"
	"github.com/hyp3rd/ewrap"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTargetURL = "https://localhost:44392/api/Player/spin/67a5338b175f6d97b8e47a78"
	DefaultCSVPath   = "spin_results.csv"

	defaultBetAmount          = 10
	defaultIterations         = 1000
	defaultPause              = 10 * time.Millisecond
	defaultTimeout            = 30 * time.Second
	defaultInsecureSkipVerify = false

	defaultControlAddr = "127.0.0.1"
	defaultControlPort = 8090
	defaultLogLevel    = "info"

	// MaxBetAmount mirrors the upper bound the slot API enforces on bets.
	MaxBetAmount = 100000
)

const (
	envURL                = "SLOTPROBE_URL"
	envBet                = "SLOTPROBE_BET"
	envIterations         = "SLOTPROBE_ITERATIONS"
	envPause              = "SLOTPROBE_PAUSE"
	envOutput             = "SLOTPROBE_OUTPUT"
	envInsecureSkipVerify = "SLOTPROBE_INSECURE_SKIP_VERIFY"
	envHistoryDB          = "SLOTPROBE_HISTORY_DB"
	envLogLevel           = "SLOTPROBE_LOG_LEVEL"
)

// ErrInvalidConfig marks every validation failure.
var ErrInvalidConfig = ewrap.New("invalid config")

type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return ewrap.New("duration must be a scalar")
	}
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	default:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		if raw == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return ewrap.Wrapf(err, "invalid duration %q", raw)
		}
		*d = Duration(parsed)
		return nil
	}
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Amount is a monetary value decoded from either a YAML number or a quoted
// string, kept exact.
type Amount decimal.Decimal

func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return ewrap.New("amount must be a scalar")
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		*a = Amount(decimal.Zero)
		return nil
	}
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		return ewrap.Wrapf(err, "invalid amount %q", raw)
	}
	*a = Amount(parsed)
	return nil
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.Decimal(a)
}

func (a Amount) String() string {
	return a.Decimal().String()
}

type Config struct {
	Target  TargetConfig  `yaml:"target"`
	Run     RunConfig     `yaml:"run"`
	Output  OutputConfig  `yaml:"output"`
	Control ControlConfig `yaml:"control"`
	Log     LogConfig     `yaml:"log"`
}

type TargetConfig struct {
	URL       string   `yaml:"url"`
	// BetAmount is nil when unset; an explicit value must be positive.
	BetAmount *Amount  `yaml:"bet_amount"`
	Timeout   Duration `yaml:"timeout"`
	// InsecureSkipVerify disables TLS certificate verification for the target.
	// It must be set explicitly; nil means verification stays on.
	InsecureSkipVerify *bool `yaml:"insecure_skip_verify"`
}

type RunConfig struct {
	Iterations int      `yaml:"iterations"`
	Pause      Duration `yaml:"pause"`
}

type OutputConfig struct {
	CSVPath   string `yaml:"csv_path"`
	HistoryDB string `yaml:"history_db"`
}

type ControlConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BindAddr  string `yaml:"bind_addr"`
	BindPort  int    `yaml:"bind_port"`
	AuthToken string `yaml:"auth_token"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func (t TargetConfig) SkipVerify() bool {
	return util.BoolValue(t.InsecureSkipVerify, defaultInsecureSkipVerify)
}

// Default returns the configuration built only from defaults.
func Default() Config {
	var cfg Config
	cfg.setDefaults()
	return cfg
}

func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, ewrap.Wrap(err, "read config")
	}
	return Parse(raw)
}

// LoadOrDefault behaves like LoadConfig but falls back to defaults when the
// file does not exist. Environment overrides are applied in both cases.
func LoadOrDefault(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		raw = nil
	} else if err != nil {
		return Config{}, ewrap.Wrap(err, "read config")
	}
	return Parse(raw)
}

func Parse(raw []byte) (Config, error) {
	cfg, err := parse(raw)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parse(raw []byte) (Config, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, ewrap.Wrap(err, "parse config")
		}
	}
	cfg.setDefaults()
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return ewrap.Wrapf(err, "load %s", path)
	}
	return nil
}

func (c *Config) setDefaults() {
	c.Target.URL = strings.TrimSpace(c.Target.URL)
	if c.Target.URL == "" {
		c.Target.URL = DefaultTargetURL
	}
	if c.Target.BetAmount == nil {
		bet := Amount(decimal.NewFromInt(defaultBetAmount))
		c.Target.BetAmount = &bet
	}
	if c.Target.Timeout == 0 {
		c.Target.Timeout = Duration(defaultTimeout)
	}

	if c.Run.Iterations == 0 {
		c.Run.Iterations = defaultIterations
	}
	if c.Run.Pause == 0 {
		c.Run.Pause = Duration(defaultPause)
	}

	if strings.TrimSpace(c.Output.CSVPath) == "" {
		c.Output.CSVPath = DefaultCSVPath
	}

	if c.Control.BindAddr == "" {
		c.Control.BindAddr = defaultControlAddr
	}
	if c.Control.BindPort == 0 {
		c.Control.BindPort = defaultControlPort
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envURL); ok && v != "" {
		c.Target.URL = strings.TrimSpace(v)
	}
	if v, ok := lookup(envBet); ok && v != "" {
		bet, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return ewrap.Wrap(err, envBet)
		}
		amount := Amount(bet)
		c.Target.BetAmount = &amount
	}
	if v, ok := lookup(envIterations); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return ewrap.Wrap(err, envIterations)
		}
		c.Run.Iterations = n
	}
	if v, ok := lookup(envPause); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return ewrap.Wrap(err, envPause)
		}
		c.Run.Pause = Duration(d)
	}
	if v, ok := lookup(envOutput); ok && v != "" {
		c.Output.CSVPath = strings.TrimSpace(v)
	}
	if v, ok := lookup(envInsecureSkipVerify); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return ewrap.Wrap(err, envInsecureSkipVerify)
		}
		c.Target.InsecureSkipVerify = &b
	}
	if v, ok := lookup(envHistoryDB); ok {
		c.Output.HistoryDB = strings.TrimSpace(v)
	}
	if v, ok := lookup(envLogLevel); ok && v != "" {
		c.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Target.URL)
	if err != nil {
		return ewrap.Wrapf(ErrInvalidConfig, "target.url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ewrap.Wrapf(ErrInvalidConfig, "target.url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return ewrap.Wrap(ErrInvalidConfig, "target.url must include a host")
	}
	if c.Target.BetAmount == nil {
		return ewrap.Wrap(ErrInvalidConfig, "target.bet_amount is required")
	}
	bet := c.Target.BetAmount.Decimal()
	if !bet.IsPositive() {
		return ewrap.Wrap(ErrInvalidConfig, "target.bet_amount must be > 0")
	}
	if bet.GreaterThan(decimal.NewFromInt(MaxBetAmount)) {
		return ewrap.Wrapf(ErrInvalidConfig, "target.bet_amount must be <= %d", MaxBetAmount)
	}
	if c.Target.Timeout.Duration() < 0 {
		return ewrap.Wrap(ErrInvalidConfig, "target.timeout must be >= 0")
	}
	if c.Run.Iterations <= 0 {
		return ewrap.Wrap(ErrInvalidConfig, "run.iterations must be > 0")
	}
	if c.Run.Pause.Duration() < 0 {
		return ewrap.Wrap(ErrInvalidConfig, "run.pause must be >= 0")
	}
	if c.Control.Enabled && (c.Control.BindPort <= 0 || c.Control.BindPort > 65535) {
		return ewrap.Wrap(ErrInvalidConfig, "control.bind_port must be in 1..65535")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return ewrap.Wrapf(ErrInvalidConfig, "log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}
