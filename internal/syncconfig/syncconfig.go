package syncconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AutoSyncConfig holds auto-sync settings.
type AutoSyncConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`  // nil = default true
	OnStart  *bool  `json:"on_start,omitempty"` // nil = default true
	Interval string `json:"interval,omitempty"` // duration string, default "5m"
	Pull     *bool  `json:"pull,omitempty"`     // nil = default true
}

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	URL     string         `json:"url"`
	Enabled bool           `json:"enabled"`
	Auto    AutoSyncConfig `json:"auto"`
}

// Config is the global lift config stored at ~/.config/lift/config.json.
type Config struct {
	Sync SyncConfig `json:"sync"`
}

// AuthCredentials stores authentication state at ~/.config/lift/auth.json.
type AuthCredentials struct {
	APIKey    string `json:"api_key"`
	UserID    string `json:"user_id"`
	ServerURL string `json:"server_url"`
	DeviceID  string `json:"device_id"`
}

// KeyMaterial stores encryption key state at ~/.config/lift/key.json.
// The data key itself is wrapped; only the passphrase (or a private key
// from another enrolled device) can recover it.
type KeyMaterial struct {
	Salt       string `json:"salt"`        // base for passphrase derivation, hex
	WrappedDEK string `json:"wrapped_dek"` // data key encrypted under the derived key, hex
}

// EnrollKey stores a device's enrollment keypair at
// ~/.config/lift/enroll.json while it waits for a grant from an already
// encrypted device. Removed once the grant is redeemed.
type EnrollKey struct {
	PrivateKey string `json:"private_key"` // X25519 private key, hex
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns ~/.config/lift, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "lift")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// LoadConfig reads the global config from ~/.config/lift/config.json.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the global config to ~/.config/lift/config.json.
func SaveConfig(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// LoadAuth reads auth credentials from ~/.config/lift/auth.json.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth writes auth credentials to ~/.config/lift/auth.json (0600 perms).
func SaveAuth(creds *AuthCredentials) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "auth.json"), data, 0600)
}

// ClearAuth removes the auth.json file.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// LoadKeyMaterial reads encryption key state from ~/.config/lift/key.json.
// Returns nil without error when no key has been set up yet.
func LoadKeyMaterial() (*KeyMaterial, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "key.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var km KeyMaterial
	if err := json.Unmarshal(data, &km); err != nil {
		return nil, err
	}
	return &km, nil
}

// SaveKeyMaterial writes encryption key state to ~/.config/lift/key.json (0600 perms).
func SaveKeyMaterial(km *KeyMaterial) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(km, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "key.json"), data, 0600)
}

// LoadEnrollKey reads the pending enrollment keypair. Returns nil without
// error when no enrollment is in progress.
func LoadEnrollKey() (*EnrollKey, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "enroll.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ek EnrollKey
	if err := json.Unmarshal(data, &ek); err != nil {
		return nil, err
	}
	return &ek, nil
}

// SaveEnrollKey writes the pending enrollment keypair (0600 perms).
func SaveEnrollKey(ek *EnrollKey) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(ek, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "enroll.json"), data, 0600)
}

// ClearEnrollKey removes the enrollment keypair once the grant is redeemed.
func ClearEnrollKey() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "enroll.json"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetServerURL returns the sync server URL.
// Priority: LIFT_SYNC_URL env > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("LIFT_SYNC_URL"); v != "" {
		return v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.URL != "" {
		return cfg.Sync.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the API key.
// Priority: LIFT_AUTH_KEY env > auth.json.
func GetAPIKey() string {
	if v := os.Getenv("LIFT_AUTH_KEY"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil {
		return creds.APIKey
	}
	return ""
}

// IsAuthenticated returns true if an API key is available.
func IsAuthenticated() bool {
	return GetAPIKey() != ""
}

// GetDeviceID returns the device ID from auth.json, generating one if needed.
func GetDeviceID() (string, error) {
	creds, err := LoadAuth()
	if err != nil {
		return "", err
	}
	if creds != nil && creds.DeviceID != "" {
		return creds.DeviceID, nil
	}
	return GenerateDeviceID()
}

// GenerateDeviceID creates a new random device ID (16 bytes hex).
func GenerateDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := os.Getenv(envKey)
	if v == "" {
		return nil
	}
	v = strings.ToLower(v)
	if v == "1" || v == "true" {
		b := true
		return &b
	}
	if v == "0" || v == "false" {
		b := false
		return &b
	}
	return nil
}

// GetAutoSyncEnabled returns whether auto-sync is enabled.
// Priority: LIFT_SYNC_AUTO env > config.json sync.auto.enabled > true
func GetAutoSyncEnabled() bool {
	if v := parseBoolEnv("LIFT_SYNC_AUTO"); v != nil {
		return *v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Enabled != nil {
		return *cfg.Sync.Auto.Enabled
	}
	return true
}

// GetAutoSyncOnStart returns whether to sync on startup.
// Priority: LIFT_SYNC_AUTO_START env > config.json sync.auto.on_start > true
func GetAutoSyncOnStart() bool {
	if v := parseBoolEnv("LIFT_SYNC_AUTO_START"); v != nil {
		return *v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.OnStart != nil {
		return *cfg.Sync.Auto.OnStart
	}
	return true
}

// GetAutoSyncInterval returns the periodic sync interval.
// Priority: LIFT_SYNC_AUTO_INTERVAL env > config.json sync.auto.interval > 5m
func GetAutoSyncInterval() time.Duration {
	if v := os.Getenv("LIFT_SYNC_AUTO_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Interval != "" {
		if d, err := time.ParseDuration(cfg.Sync.Auto.Interval); err == nil {
			return d
		}
	}
	return 5 * time.Minute
}

// GetAutoSyncPull returns whether auto-sync should include pull.
// Priority: LIFT_SYNC_AUTO_PULL env > config.json sync.auto.pull > true
func GetAutoSyncPull() bool {
	if v := parseBoolEnv("LIFT_SYNC_AUTO_PULL"); v != nil {
		return *v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Pull != nil {
		return *cfg.Sync.Auto.Pull
	}
	return true
}
