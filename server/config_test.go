package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/knmorgan/nova/sim"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("expected addr :8080, got %q", cfg.Addr)
	}
	if cfg.TickRate != 50 {
		t.Errorf("expected tick rate 50, got %d", cfg.TickRate)
	}
	if !cfg.Waves {
		t.Error("expected waves on by default")
	}

	opts := cfg.SessionOptions()
	if opts.TickEvery != 20*time.Millisecond {
		t.Errorf("expected 20ms ticks, got %v", opts.TickEvery)
	}
	if opts.Sim.Width != sim.DefaultArenaWidth {
		t.Errorf("expected width %d, got %d", sim.DefaultArenaWidth, opts.Sim.Width)
	}
	if opts.Sim.CellSize != sim.DefaultCellSize {
		t.Errorf("expected cell size %v, got %v", sim.DefaultCellSize, opts.Sim.CellSize)
	}
}

func TestLoadConfigEnvAndFlags(t *testing.T) {
	t.Setenv("NOVA_ADDR", ":9000")
	t.Setenv("NOVA_LIVES", "5")
	t.Setenv("NOVA_WAVES", "false")
	t.Setenv("NOVA_TOKEN_TTL", "30m")

	cfg, err := LoadConfig([]string{"-lives", "1", "-width", "640"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":9000" {
		t.Errorf("expected addr from env, got %q", cfg.Addr)
	}
	if cfg.Lives != 1 {
		t.Errorf("flags beat the environment: expected 1 life, got %d", cfg.Lives)
	}
	if cfg.Width != 640 {
		t.Errorf("expected width 640, got %d", cfg.Width)
	}
	if cfg.Waves {
		t.Error("expected waves off from env")
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", cfg.TokenTTL)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := [][]string{
		{"-tick-rate", "0"},
		{"-broadcast-every", "0"},
		{"-max-sessions", "-1"},
		{"-log-format", "xml"},
		{"-log-level", "loud"},
		{"-width", "0"},
		{"-lives", "-1"},
		{"-no-such-flag"},
	}
	for _, args := range tests {
		if _, err := LoadConfig(args); !errors.Is(err, ErrBadConfig) {
			t.Errorf("%v: expected ErrBadConfig, got %v", args, err)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("warn", "json", &buf)
	if log.GetLevel() != logrus.WarnLevel {
		t.Errorf("expected warn level, got %v", log.GetLevel())
	}

	log.Info("hidden")
	log.WithField("session", "abc").Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(out, `"session":"abc"`) {
		t.Errorf("expected JSON field in output, got %q", out)
	}
}
