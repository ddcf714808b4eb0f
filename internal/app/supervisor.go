package app

import (
	"context"
	"io"

	"github.com/NodePath81/slotprobe/internal/config"
	"github.com/NodePath81/slotprobe/internal/probe"
	"github.com/NodePath81/slotprobe/internal/util"
)

// Supervisor loads configuration and drives one Runtime through its
// lifecycle.
type Supervisor struct {
	configPath string
	stdout     io.Writer
	logger     util.Logger
}

// NewSupervisor builds a supervisor. A nil logger is replaced by one built
// from the loaded config's log level.
func NewSupervisor(configPath string, stdout io.Writer, logger util.Logger) *Supervisor {
	return &Supervisor{
		configPath: configPath,
		stdout:     stdout,
		logger:     logger,
	}
}

func (s *Supervisor) Run(ctx context.Context) (probe.Result, error) {
	cfg, err := config.LoadOrDefault(s.configPath)
	if err != nil {
		return probe.Result{}, err
	}
	logger := s.logger
	if logger == nil {
		logger = util.NewLogger(cfg.Log.Level)
	}
	runtime, err := NewRuntime(cfg, logger, s.stdout)
	if err != nil {
		return probe.Result{}, err
	}
	if err := runtime.Start(); err != nil {
		return probe.Result{}, err
	}
	defer runtime.Stop()
	return runtime.Run(ctx)
}
