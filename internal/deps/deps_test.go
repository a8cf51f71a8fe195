package deps

import (
	"os"
	"path/filepath"
	"testing"

	"openbq/internal/config"
	"openbq/internal/workunit"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Empty"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for empty command: %q", results[2].Detail)
	}
}

func TestEngineRequirementsMarksActiveEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Engines["ofiq"] = config.EngineCommand{Command: "ofiq-cli"}

	reqs := EngineRequirements(&cfg, workunit.EngineOFIQ)
	if len(reqs) != 4 {
		t.Fatalf("expected 4 engine requirements, got %d", len(reqs))
	}
	for _, req := range reqs {
		if req.Name == "OFIQ" {
			if req.Optional || req.Command != "ofiq-cli" {
				t.Fatalf("active engine should be required, got %+v", req)
			}
			continue
		}
		if !req.Optional {
			t.Fatalf("inactive engine %s should be optional", req.Name)
		}
	}
	if EngineRequirements(nil, workunit.EngineOBQE) != nil {
		t.Fatal("expected nil requirements for nil config")
	}
}
