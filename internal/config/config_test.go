package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Allocator != "simple" || cfg.Port != 7070 || cfg.Isolation != "process" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadRejectsUnknownAllocator(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("allocator", "simple", "")
	if err := flags.Parse([]string{"--allocator=bogus"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Load(flags, ""); err == nil {
		t.Fatal("expected validation error for unknown allocator")
	}
}

func TestLoadHonorsFlagOverride(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 7070, "")
	if err := flags.Parse([]string{"--port=9999"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg, err := Load(flags, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9999 {
		t.Fatalf("expected flag override to win, got port %d", cfg.Port)
	}
}
