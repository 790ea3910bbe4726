package main

import (
	"path/filepath"
	"testing"
)

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_PLAYERS", "12")
	opts := &options{}
	cmd := newCmd(opts)
	if err := cmd.Flags().Parse([]string{"--port", "9100", "--env-file", filepath.Join(t.TempDir(), "missing.env")}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadConfig(cmd.Flags(), opts)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("expected flag port 9100, got %d", cfg.Port)
	}
	if cfg.MaxPlayers != 12 {
		t.Fatalf("expected env max players 12, got %d", cfg.MaxPlayers)
	}
}

func TestLoadConfigRejectsBadDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	opts := &options{}
	cmd := newCmd(opts)
	if err := cmd.Flags().Parse([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := loadConfig(cmd.Flags(), opts); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestDriverFlagRepairsBadEnvironment(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	opts := &options{}
	cmd := newCmd(opts)
	if err := cmd.Flags().Parse([]string{"--database-driver", "mysql", "--env-file", filepath.Join(t.TempDir(), "missing.env")}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := loadConfig(cmd.Flags(), opts)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseDriver != "mysql" {
		t.Fatalf("expected mysql, got %q", cfg.DatabaseDriver)
	}
}
