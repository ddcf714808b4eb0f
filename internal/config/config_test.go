package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	assert.NoError(t, err)
	assert.Equal(t, DefaultTargetURL, cfg.Target.URL)
	assert.Equal(t, "10", cfg.Target.BetAmount.String())
	assert.Equal(t, 1000, cfg.Run.Iterations)
	assert.Equal(t, 10*time.Millisecond, cfg.Run.Pause.Duration())
	assert.Equal(t, DefaultCSVPath, cfg.Output.CSVPath)
	assert.False(t, cfg.Target.SkipVerify())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParseYAML(t *testing.T) {
	raw := []byte(`
target:
  url: http://127.0.0.1:9000/api/Player/spin/p1
  bet_amount: "2.50"
  timeout: 5
  insecure_skip_verify: true
run:
  iterations: 25
  pause: 1ms
output:
  csv_path: out.csv
  history_db: runs.db
log:
  level: DEBUG
`)
	cfg, err := Parse(raw)
	assert.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/api/Player/spin/p1", cfg.Target.URL)
	assert.Equal(t, "2.5", cfg.Target.BetAmount.String())
	assert.Equal(t, 5*time.Second, cfg.Target.Timeout.Duration())
	assert.True(t, cfg.Target.SkipVerify())
	assert.Equal(t, 25, cfg.Run.Iterations)
	assert.Equal(t, time.Millisecond, cfg.Run.Pause.Duration())
	assert.Equal(t, "out.csv", cfg.Output.CSVPath)
	assert.Equal(t, "runs.db", cfg.Output.HistoryDB)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad scheme", "target:\n  url: ftp://host/spin\n"},
		{"missing host", "target:\n  url: https:///spin\n"},
		{"negative bet", "target:\n  bet_amount: -1\n"},
		{"zero bet", "target:\n  bet_amount: 0\n"},
		{"empty bet", "target:\n  bet_amount: \"\"\n"},
		{"bet above max", "target:\n  bet_amount: 100001\n"},
		{"negative iterations", "run:\n  iterations: -3\n"},
		{"bad amount", "target:\n  bet_amount: ten\n"},
		{"bad duration", "run:\n  pause: soon\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"control port", "control:\n  enabled: true\n  bind_port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			assert.True(t, err != nil)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		envURL:                "http://localhost:1/spin",
		envBet:                "25",
		envIterations:         "3",
		envPause:              "0s",
		envOutput:             "env.csv",
		envInsecureSkipVerify: "true",
		envLogLevel:           "warn",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.NoError(t, err)
	assert.NoError(t, cfg.validate())
	assert.Equal(t, "http://localhost:1/spin", cfg.Target.URL)
	assert.Equal(t, "25", cfg.Target.BetAmount.String())
	assert.Equal(t, 3, cfg.Run.Iterations)
	assert.Equal(t, time.Duration(0), cfg.Run.Pause.Duration())
	assert.Equal(t, "env.csv", cfg.Output.CSVPath)
	assert.True(t, cfg.Target.SkipVerify())
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == envIterations {
			return "many", true
		}
		return "", false
	})
	assert.True(t, err != nil)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, 1000, cfg.Run.Iterations)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidationErrorsAreTyped(t *testing.T) {
	_, err := Parse([]byte("target:\n  bet_amount: 0\n"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Parse([]byte("run:\n  iterations: -1\n"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestUnsetBetUsesDefault(t *testing.T) {
	cfg, err := Parse([]byte("target:\n  bet_amount:\n"))
	assert.NoError(t, err)
	assert.Equal(t, "10", cfg.Target.BetAmount.String())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadDotEnv(filepath.Join(dir, ".env")))

	path := filepath.Join(dir, ".env")
	assert.NoError(t, os.WriteFile(path, []byte("SLOTPROBE_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SLOTPROBE_TEST_DOTENV") })
	assert.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("SLOTPROBE_TEST_DOTENV"))
}
