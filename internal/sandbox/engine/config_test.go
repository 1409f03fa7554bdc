package engine

import (
	"testing"
	"time"
)

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.DisableSeccomp {
		t.Fatal("zero-value config must keep the network filter on")
	}
	if cfg.HelperPath != "sandrun-init" {
		t.Fatalf("helper path: got %q", cfg.HelperPath)
	}
	if cfg.GraceMargin != 2*time.Second {
		t.Fatalf("grace margin: got %v", cfg.GraceMargin)
	}
	if cfg.OutputMaxBytes != 1<<20 {
		t.Fatalf("output cap: got %d", cfg.OutputMaxBytes)
	}
}

func TestWithDefaultsKeepsExplicitValues(t *testing.T) {
	in := Config{
		HelperPath:     "/opt/sandrun-init",
		GraceMargin:    time.Second,
		OutputMaxBytes: 64,
		DisableSeccomp: true,
	}
	cfg := in.withDefaults()
	if cfg != in {
		t.Fatalf("explicit config mutated: %+v", cfg)
	}
}
