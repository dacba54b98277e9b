package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolveRoot(t *testing.T) {
	cases := []struct {
		host, mode, want string
	}{
		{"", "", DevRoot},
		{"localhost:5173", "", DevRoot},
		{"127.0.0.1:5173", "", DevRoot},
		{"app.swarm9.sphinx.chat", "", "https://app.swarm9.sphinx.chat/api"},
		{"localhost:8080", "", "http://localhost:8080/api"},
		{"app.swarm9.sphinx.chat", ModeSuper, SuperAdminRoot},
		{"localhost:5173", ModeSuper, SuperAdminRoot},
	}
	for _, tc := range cases {
		if got := ResolveRoot(tc.host, tc.mode); got != tc.want {
			t.Fatalf("ResolveRoot(%q, %q) = %q, want %q", tc.host, tc.mode, got, tc.want)
		}
	}
}

func TestRootPrefersExplicitAPIRoot(t *testing.T) {
	cfg := ClientConfig{APIRoot: "http://10.0.0.5:8000/api/", Host: "example.com", Mode: ModeSuper}
	if got := cfg.Root(); got != "http://10.0.0.5:8000/api" {
		t.Fatalf("unexpected root %q", got)
	}
}

func TestClientFromEnvAppliesProfileThenEnv(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "profile.yaml")
	body := "host: swarm.example.com\ntag: relay1\nmax_retry: 32s\nreset_on_open: true\n"
	if err := os.WriteFile(profile, []byte(body), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	t.Setenv("SWARM_PROFILE", profile)
	t.Setenv("SWARM_TAG", "lnd1")
	t.Setenv("SWARM_STATE_PATH", filepath.Join(dir, "state.db"))

	cfg, err := ClientFromEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Host != "swarm.example.com" {
		t.Fatalf("profile host not applied: %q", cfg.Host)
	}
	if cfg.Tag != "lnd1" {
		t.Fatalf("env tag should win, got %q", cfg.Tag)
	}
	if cfg.MaxRetry != 32*time.Second || !cfg.ResetOnOpen {
		t.Fatalf("profile retry settings not applied: %+v", cfg)
	}
	if cfg.Root() != "https://swarm.example.com/api" {
		t.Fatalf("unexpected root %q", cfg.Root())
	}
}

func TestClientFromEnvRejectsUnknownMode(t *testing.T) {
	t.Setenv("SWARM_PROFILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SWARM_MODE", "turbo")
	if _, err := ClientFromEnv(); err == nil {
		t.Fatalf("expected invalid mode error")
	}
}

func TestRestarterFromEnv(t *testing.T) {
	t.Setenv("PORT", "4004")
	t.Setenv("PASSWORD", "hunter2")
	t.Setenv("SECOND_BRAIN", "1")
	t.Setenv("IS_SUPER_ADMIN", "true")

	cfg, err := RestarterFromEnv()
	if err != nil {
		t.Fatalf("load restarter config: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:4004" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if !cfg.SecondBrain || !cfg.SuperAdmin || cfg.Password != "hunter2" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.SecondBrainSSL != "second-brain-2.yml" {
		t.Fatalf("unexpected compose default %q", cfg.SecondBrainSSL)
	}
}

func TestRestarterFromEnvRejectsBadListen(t *testing.T) {
	t.Setenv("RESTARTER_LISTEN", "no-port")
	if _, err := RestarterFromEnv(); err == nil {
		t.Fatalf("expected listen address error")
	}
}
