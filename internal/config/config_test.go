package config

import (
	"os"
	"path/filepath"
	"testing"
)

func fakeEnv(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	if !cfg.Hierarchy.StrictMode {
		t.Error("DefaultConfig() should default to strict mode")
	}
	if cfg.Cache.MaxEntries != 10000 {
		t.Errorf("MaxEntries = %d, want 10000", cfg.Cache.MaxEntries)
	}
}

func TestLoadWithEnv_NoFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	env := fakeEnv(map[string]string{
		"XDG_CONFIG_HOME":       dir,
		"TASKGRAPH_MACHINE_ID":  "machine-a",
		"TASKGRAPH_SHARED_ROOT": "/shared",
	})

	cfg, err := LoadWithEnv(env)
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}
	if cfg.MachineID != "machine-a" {
		t.Errorf("MachineID = %q, want machine-a", cfg.MachineID)
	}
	if cfg.SharedRoot != "/shared" {
		t.Errorf("SharedRoot = %q, want /shared", cfg.SharedRoot)
	}
}

func TestLoadWithEnv_FileThenEnvOverride(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "taskgraph")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("machine_id: from-file\nshared_root: /from/file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	env := fakeEnv(map[string]string{
		"XDG_CONFIG_HOME":      dir,
		"TASKGRAPH_MACHINE_ID": "from-env",
	})

	cfg, err := LoadWithEnv(env)
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}
	if cfg.MachineID != "from-env" {
		t.Errorf("MachineID = %q, want from-env (env overrides file)", cfg.MachineID)
	}
	if cfg.SharedRoot != "/from/file" {
		t.Errorf("SharedRoot = %q, want /from/file (no env override given)", cfg.SharedRoot)
	}
}

func TestGetConfigPathWithEnv(t *testing.T) {
	t.Parallel()
	env := fakeEnv(map[string]string{"XDG_CONFIG_HOME": "/xdg"})
	got := getConfigPathWithEnv(env)
	want := filepath.Join("/xdg", "taskgraph", "config.yaml")
	if got != want {
		t.Errorf("getConfigPathWithEnv() = %q, want %q", got, want)
	}
}
