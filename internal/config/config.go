package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
)

// Defaults applied when neither the config file nor the environment
// provides a value.
const (
	DefaultMaxDiffChars      = 30000
	DefaultSessionTTLMinutes = 30
	DefaultTemplatePath      = "config/wiki_templates.yaml"
)

// Config holds application configuration.
type Config struct {
	// ServerName identifies this instance in MCP handshakes.
	ServerName string `json:"server_name,omitempty"`

	// JiraBaseURL is the issue tracker base URL (e.g. https://jira.example.com).
	// Empty disables all issue-tracker tools.
	JiraBaseURL string `json:"jira_base_url,omitempty"`

	// UserID and UserPassword are the shared credentials for the issue
	// tracker and the wiki (same SSO account on both).
	UserID       string `json:"user_id,omitempty"`
	UserPassword string `json:"user_password,omitempty"`

	// WikiBaseURL is the wiki base URL. Empty disables all wiki tools.
	WikiBaseURL string `json:"wiki_base_url,omitempty"`

	// WikiSpaceKey is the default space for generated pages.
	WikiSpaceKey string `json:"wiki_space_key,omitempty"`

	// WikiRootPageID is the root container under which year/month pages live.
	WikiRootPageID string `json:"wiki_root_page_id,omitempty"`

	// TemplatePath points at the workflow template YAML file.
	TemplatePath string `json:"template_path,omitempty"`

	// GitRepositories maps project name to local repository path.
	// Used for branch auto-detection and as the repository allowlist.
	GitRepositories map[string]string `json:"git_repositories,omitempty"`

	// MaxDiffChars bounds the size of truncated diff output.
	MaxDiffChars int `json:"max_diff_chars,omitempty"`

	// SessionTTLMinutes is the inactivity TTL for workflow sessions.
	// The approval token window uses the same duration.
	SessionTTLMinutes int `json:"session_ttl_minutes,omitempty"`

	// AuthorName is substituted into year/month title templates.
	AuthorName string `json:"author_name,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ServerName:        "wikigen",
		TemplatePath:      DefaultTemplatePath,
		MaxDiffChars:      DefaultMaxDiffChars,
		SessionTTLMinutes: DefaultSessionTTLMinutes,
	}
}

// Load loads configuration from baseDir/config.json, then applies
// environment variable overrides on top. Returns defaults when the
// file does not exist. The baseDir parameter allows tests to use
// t.TempDir() instead of ~/.wikigen.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for non-zero scalars; the repository
// map is replaced wholesale when the overlay provides one.
func Merge(base, overlay *Config) *Config {
	result := *base

	if overlay.ServerName != "" {
		result.ServerName = overlay.ServerName
	}
	if overlay.JiraBaseURL != "" {
		result.JiraBaseURL = overlay.JiraBaseURL
	}
	if overlay.UserID != "" {
		result.UserID = overlay.UserID
	}
	if overlay.UserPassword != "" {
		result.UserPassword = overlay.UserPassword
	}
	if overlay.WikiBaseURL != "" {
		result.WikiBaseURL = overlay.WikiBaseURL
	}
	if overlay.WikiSpaceKey != "" {
		result.WikiSpaceKey = overlay.WikiSpaceKey
	}
	if overlay.WikiRootPageID != "" {
		result.WikiRootPageID = overlay.WikiRootPageID
	}
	if overlay.TemplatePath != "" {
		result.TemplatePath = overlay.TemplatePath
	}
	if overlay.GitRepositories != nil {
		result.GitRepositories = overlay.GitRepositories
	}
	if overlay.MaxDiffChars != 0 {
		result.MaxDiffChars = overlay.MaxDiffChars
	}
	if overlay.SessionTTLMinutes != 0 {
		result.SessionTTLMinutes = overlay.SessionTTLMinutes
	}
	if overlay.AuthorName != "" {
		result.AuthorName = overlay.AuthorName
	}

	return &result
}

// applyEnv overrides config fields from environment variables.
// GIT_REPOSITORIES is a JSON object of {"project": "/path"}.
func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.ServerName, "SERVER_NAME")
	setString(&cfg.JiraBaseURL, "JIRA_BASE_URL")
	setString(&cfg.UserID, "USER_ID")
	setString(&cfg.UserPassword, "USER_PASSWORD")
	setString(&cfg.WikiBaseURL, "WIKI_BASE_URL")
	setString(&cfg.WikiSpaceKey, "WIKI_SPACE_KEY")
	setString(&cfg.WikiRootPageID, "WIKI_ROOT_PAGE_ID")
	setString(&cfg.TemplatePath, "TEMPLATE_YAML_PATH")
	setString(&cfg.AuthorName, "AUTHOR_NAME")

	if v := os.Getenv("MAX_DIFF_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxDiffChars = n
		}
	}
	if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTLMinutes = n
		}
	}
	if v := os.Getenv("GIT_REPOSITORIES"); v != "" {
		repos := map[string]string{}
		if err := json.Unmarshal([]byte(v), &repos); err == nil {
			cfg.GitRepositories = repos
		}
	}
}

// HasWiki reports whether page creation tools can run.
// Creation needs both the base URL and the root container page.
func (c *Config) HasWiki() bool {
	return c.WikiBaseURL != "" && c.WikiRootPageID != ""
}

// HasWikiBase reports whether read/update wiki tools can run.
// Lookup and update do not need the root page id.
func (c *Config) HasWikiBase() bool {
	return c.WikiBaseURL != ""
}

// HasJira reports whether issue-tracker tools can run.
func (c *Config) HasJira() bool {
	return c.JiraBaseURL != ""
}
