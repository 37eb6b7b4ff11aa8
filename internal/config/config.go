package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single liturgical-calendar ICS subscription used as
// extra context when composing suggestion prompts.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
// PasswordHash is an argon2id hash produced by the hash-password subcommand.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"password_hash"`
}

// GeminiConfig holds the generative API credentials and model selection.
type GeminiConfig struct {
	// APIKeys is an ordered list of API keys. On quota errors the gateway
	// rotates to the next key; the order here is the rotation order.
	APIKeys []string `yaml:"api_keys" json:"api_keys"`

	// APIKey is a legacy single-key field kept for backward compatibility.
	// Normalize folds it into APIKeys when APIKeys is empty.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// Model is the Gemini model identifier.
	Model string `yaml:"model" json:"model"`
}

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-3-flash-preview"

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// SheetCSVURL is the CSV export URL of the bulletin spreadsheet
	// (e.g. https://docs.google.com/spreadsheets/d/<id>/export?format=csv).
	SheetCSVURL string `yaml:"sheet_csv_url" json:"sheet_csv_url"`

	// RefreshCron is a cron-style schedule string used for periodic
	// re-pull of the sheet. Defaults to every five minutes.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheTTLMinutes bounds how long a pulled table is served before the
	// next pull is forced. Manual refresh bypasses it.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" json:"cache_ttl_minutes"`

	// DataDir holds the sheet HTTP cache and the sqlite snapshot.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Gemini configures the generative API gateway.
	Gemini GeminiConfig `yaml:"gemini" json:"gemini"`

	// LiturgicalICS is the list of subscribed liturgical calendar feeds.
	LiturgicalICS []ICSConfig `yaml:"liturgical_ics" json:"liturgical_ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		Timezone:        "Asia/Seoul",
		SheetCSVURL:     "",
		RefreshCron:     "*/5 * * * *",
		CacheTTLMinutes: 5,
		DataDir:         "/var/lib/jubo",
		Gemini: GeminiConfig{
			APIKeys: []string{},
			Model:   DefaultModel,
		},
		LiturgicalICS: []ICSConfig{},
		BasicAuth:     nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/5 * * * *"
	}
	if c.CacheTTLMinutes <= 0 {
		c.CacheTTLMinutes = 5
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/jubo"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = DefaultModel
	}
	// 단일 키만 설정된 경우(하위 호환): api_key 를 리스트로 승격한다.
	if len(c.Gemini.APIKeys) == 0 && c.Gemini.APIKey != "" {
		c.Gemini.APIKeys = []string{c.Gemini.APIKey}
	}
	if c.Gemini.APIKeys == nil {
		c.Gemini.APIKeys = []string{}
	}
	if c.LiturgicalICS == nil {
		c.LiturgicalICS = []ICSConfig{}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (the file carries API keys).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".jubo-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
