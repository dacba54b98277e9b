package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DevRoot is the backend served by a locally running swarm.
	DevRoot = "http://localhost:8000/api"
	// SuperAdminRoot is the fleet-manager backend selected by mode "super".
	SuperAdminRoot = "https://app.superadmin.sphinx.chat/api"
	// ModeSuper switches the client to the super-admin backend.
	ModeSuper = "super"

	// SwarmTag routes a command to the orchestrator rather than a managed node.
	SwarmTag = "SWARM"

	defaultStatePath     = "~/.swarmctl/state.db"
	defaultProfilePath   = "~/.swarmctl.yaml"
	defaultRestarterURL  = "http://127.0.0.1:3003"
	defaultRestarterPort = "3003"
	defaultMaxRetry      = 64 * time.Second
)

var devHosts = map[string]bool{
	"":               true,
	"localhost:5173": true,
	"127.0.0.1:5173": true,
}

// ClientConfig captures everything the CLI and dashboard need to reach a swarm.
type ClientConfig struct {
	APIRoot      string `yaml:"api_root"`
	Host         string `yaml:"host"`
	Mode         string `yaml:"mode"`
	Tag          string `yaml:"tag"`
	StatePath    string `yaml:"state_path"`
	RestarterURL string `yaml:"restarter_url"`
	LogLevel     string `yaml:"log_level"`

	MaxRetry    time.Duration `yaml:"max_retry"`
	ResetOnOpen bool          `yaml:"reset_on_open"`
}

// ClientFromEnv loads client configuration. Values from the YAML profile at
// SWARM_PROFILE (default ~/.swarmctl.yaml) are applied first when the file
// exists; environment variables win over the profile.
func ClientFromEnv() (ClientConfig, error) {
	cfg := ClientConfig{
		StatePath:    defaultStatePath,
		RestarterURL: defaultRestarterURL,
		LogLevel:     "warn",
		MaxRetry:     defaultMaxRetry,
	}

	profile := expandPath(getenv("SWARM_PROFILE", defaultProfilePath))
	if err := loadProfile(profile, &cfg); err != nil {
		return ClientConfig{}, err
	}

	cfg.APIRoot = getenv("SWARM_API_ROOT", cfg.APIRoot)
	cfg.Host = getenv("SWARM_HOST", cfg.Host)
	cfg.Mode = getenv("SWARM_MODE", cfg.Mode)
	cfg.Tag = getenv("SWARM_TAG", cfg.Tag)
	cfg.StatePath = getenv("SWARM_STATE_PATH", cfg.StatePath)
	cfg.RestarterURL = getenv("SWARM_RESTARTER_URL", cfg.RestarterURL)
	cfg.LogLevel = getenv("SWARM_LOG_LEVEL", cfg.LogLevel)
	cfg.MaxRetry = getenvDuration("SWARM_MAX_RETRY", cfg.MaxRetry)
	cfg.ResetOnOpen = getenvBool("SWARM_RESET_ON_OPEN", cfg.ResetOnOpen)

	cfg.StatePath = expandPath(cfg.StatePath)
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot be defaulted.
func (c ClientConfig) Validate() error {
	if c.Mode != "" && c.Mode != ModeSuper {
		return fmt.Errorf("invalid mode %q: want %q or empty", c.Mode, ModeSuper)
	}
	if c.MaxRetry < time.Second {
		return fmt.Errorf("max retry %s must be at least 1s", c.MaxRetry)
	}
	return nil
}

// Root returns the API root the client should talk to. An explicit APIRoot
// always wins; otherwise the root is derived from Host and Mode.
func (c ClientConfig) Root() string {
	if root := strings.TrimSpace(c.APIRoot); root != "" {
		return strings.TrimRight(root, "/")
	}
	return ResolveRoot(c.Host, c.Mode)
}

// ResolveRoot selects the API root for the detected host. Development hosts
// map to the local backend, mode "super" forces the super-admin backend, and
// every other host is served under /api on the same origin.
func ResolveRoot(host, mode string) string {
	if mode == ModeSuper {
		return SuperAdminRoot
	}
	host = strings.TrimSpace(host)
	if devHosts[host] {
		return DevRoot
	}
	scheme := "https"
	if isLoopbackHost(host) {
		scheme = "http"
	}
	return scheme + "://" + host + "/api"
}

func isLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

func loadProfile(path string, cfg *ClientConfig) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}
	return nil
}

// RestarterConfig configures the restarter helper daemon.
type RestarterConfig struct {
	ListenAddr        string
	Password          string
	SecondBrain       bool
	SuperAdmin        bool
	CertEmail         string
	CertBucket        string
	ComposeFile       string
	SecondBrainFile   string
	SecondBrainSSL    string
	SuperAdminCompose string
	WorkDir           string
	UseTTY            bool
	ShutdownWait      time.Duration
}

// RestarterFromEnv loads restarter configuration using the same variable
// names as the deployment scripts.
func RestarterFromEnv() (RestarterConfig, error) {
	cfg := RestarterConfig{
		ListenAddr:        getenv("RESTARTER_LISTEN", "0.0.0.0:"+getenv("PORT", defaultRestarterPort)),
		Password:          os.Getenv("PASSWORD"),
		SecondBrain:       getenvBool("SECOND_BRAIN", false),
		SuperAdmin:        os.Getenv("IS_SUPER_ADMIN") == "true",
		CertEmail:         os.Getenv("CERT_EMAIL"),
		CertBucket:        os.Getenv("CERT_BUCKET"),
		ComposeFile:       getenv("RESTARTER_COMPOSE_FILE", ""),
		SecondBrainFile:   getenv("RESTARTER_SECOND_BRAIN_FILE", "second-brain.yml"),
		SecondBrainSSL:    getenv("RESTARTER_SECOND_BRAIN_SSL_FILE", "second-brain-2.yml"),
		SuperAdminCompose: getenv("RESTARTER_SUPERADMIN_FILE", "superadmin.yml"),
		WorkDir:           getenv("RESTARTER_WORK_DIR", ""),
		UseTTY:            getenvBool("RESTARTER_TTY", false),
		ShutdownWait:      getenvDuration("RESTARTER_SHUTDOWN_WAIT", 15*time.Second),
	}

	listen := strings.TrimSpace(cfg.ListenAddr)
	if listen == "" {
		return RestarterConfig{}, fmt.Errorf("restarter listen address required")
	}
	if _, port, err := net.SplitHostPort(listen); err != nil {
		return RestarterConfig{}, fmt.Errorf("invalid restarter listen address %q: %w", listen, err)
	} else if _, err := strconv.Atoi(port); err != nil {
		return RestarterConfig{}, fmt.Errorf("invalid restarter port %q", port)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return filepath.Clean(path)
}
