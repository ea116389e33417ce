package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "support-chat"
	// RoleUser marks a plain storefront customer profile.
	RoleUser = "user"
	// RoleAdmin marks the admin operator profile.
	RoleAdmin = "admin"
	// DefaultAPIBaseURL is the REST backend used when no override exists.
	DefaultAPIBaseURL = "http://localhost:8000"
	// DefaultSocketURL is the push channel endpoint used when no override exists.
	DefaultSocketURL = "ws://localhost:8000/socket"
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// ClientConfig contains persistent local profile and endpoint settings.
type ClientConfig struct {
	ProfileID   string `json:"profile_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	APIBaseURL  string `json:"api_base_url"`
	SocketURL   string `json:"socket_url"`
	AuthToken   string `json:"auth_token"`
	AvatarURL   string `json:"avatar_url"`
}

// IsAdmin reports whether this profile runs the admin operator side.
func (c *ClientConfig) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If SUPPORT_CHAT_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("SUPPORT_CHAT_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// EnsureDataDirectories creates the app data directory layout if needed.
func EnsureDataDirectories(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create directory %q: %w", dataDir, err)
	}
	return nil
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*ClientConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ClientConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *ClientConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures directories and config exist, then returns both.
func LoadOrCreate() (*ClientConfig, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", err
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = defaultConfig()
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}

		return cfg, cfgPath, nil
	}

	if normalizeDefaults(cfg) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	return cfg, cfgPath, nil
}

func defaultConfig() *ClientConfig {
	return &ClientConfig{
		ProfileID:   uuid.NewString(),
		DisplayName: defaultDisplayName(),
		Role:        RoleUser,
		APIBaseURL:  DefaultAPIBaseURL,
		SocketURL:   DefaultSocketURL,
	}
}

func defaultDisplayName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "Support Chat Client"
}

func normalizeDefaults(cfg *ClientConfig) bool {
	updated := false

	if cfg.ProfileID == "" {
		cfg.ProfileID = uuid.NewString()
		updated = true
	}

	if cfg.DisplayName == "" {
		cfg.DisplayName = defaultDisplayName()
		updated = true
	}

	role := normalizeRole(cfg.Role)
	if role == "" {
		role = RoleUser
	}
	if cfg.Role != role {
		cfg.Role = role
		updated = true
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
		updated = true
	}

	if cfg.SocketURL == "" {
		cfg.SocketURL = DefaultSocketURL
		updated = true
	}

	return updated
}

func normalizeRole(role string) string {
	switch role {
	case RoleUser:
		return RoleUser
	case RoleAdmin:
		return RoleAdmin
	default:
		return ""
	}
}
