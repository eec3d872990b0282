package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.HTTPPort != 8080 {
		t.Errorf("default HTTPPort = %d, want 8080", cfg.Service.HTTPPort)
	}
	if cfg.Git.RepoPath != "data" {
		t.Errorf("default RepoPath = %q, want data", cfg.Git.RepoPath)
	}
	if cfg.Hook.TimeoutSeconds != 30 {
		t.Errorf("default hook timeout = %d, want 30", cfg.Hook.TimeoutSeconds)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := &Config{Service: ServiceConfig{HTTPPort: 0}, Git: GitConfig{RepoPath: "data"}, Hook: HookConfig{TimeoutSeconds: 1}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestAddrPrefersBind(t *testing.T) {
	cfg := &Config{Service: ServiceConfig{HTTPPort: 9000, Bind: "127.0.0.1:9001"}}
	if got := cfg.Addr(); got != "127.0.0.1:9001" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9001", got)
	}
}
