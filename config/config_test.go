package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wippyai/pickle-host/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pickle.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "warn" || cfg.HTTPC.Timeout != 30*time.Second || cfg.SNTP.Port != 123 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Shell.Prompt != "psh>" {
		t.Errorf("prompt = %q", cfg.Shell.Prompt)
	}
	if len(cfg.Modules.Disabled) != 0 {
		t.Errorf("disabled = %v", cfg.Modules.Disabled)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
heap:
  report: true
  fail_after: 10
modules:
  disabled: [httpc, sntp]
httpc:
  timeout: 2s
sntp:
  port: 1123
wasm:
  memory_limit_pages: 256
`)
	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" || !cfg.Heap.Report || cfg.Heap.FailAfter != 10 {
		t.Errorf("log/heap = %+v %+v", cfg.Log, cfg.Heap)
	}
	if !cfg.Disabled("httpc") || !cfg.Disabled("sntp") || cfg.Disabled("cdb") {
		t.Errorf("disabled = %v", cfg.Modules.Disabled)
	}
	if cfg.HTTPC.Timeout != 2*time.Second || cfg.SNTP.Port != 1123 || cfg.Wasm.MemoryLimitPages != 256 {
		t.Errorf("httpc/sntp/wasm = %+v %+v %+v", cfg.HTTPC, cfg.SNTP, cfg.Wasm)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PICKLE_LOG_LEVEL", "error")
	t.Setenv("PICKLE_SHELL_PROMPT", "%")
	path := writeConfig(t, "log:\n  level: debug\n")

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("env should override file: level = %q", cfg.Log.Level)
	}
	if cfg.Shell.Prompt != "%" {
		t.Errorf("prompt = %q", cfg.Shell.Prompt)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing explicit file", filepath.Join(t.TempDir(), "nope.yaml")},
		{"bad yaml", writeConfig(t, "log: [\n")},
		{"port range", writeConfig(t, "sntp:\n  port: 70000\n")},
		{"negative fail_after", writeConfig(t, "heap:\n  fail_after: -1\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(New(), tt.path)
			if errors.KindOf(err) != errors.KindInvalidArgument {
				t.Fatalf("kind = %q, want %q (%v)", errors.KindOf(err), errors.KindInvalidArgument, err)
			}
		})
	}
}
