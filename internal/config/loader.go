package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".wikimirror"

// Environment variables that override config file values. Secrets belong in
// the environment, not in files that end up in dotfile repos.
const (
	// EnvPassword overrides the wiki login password.
	EnvPassword = "WIKIMIRROR_PASSWORD"

	// EnvAPIKey overrides the optimizer API key.
	EnvAPIKey = "WIKIMIRROR_API_KEY"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .wikimirror configuration file.
// It mirrors Config section by section; durations are written as Go
// duration strings ("4s", "3m"). Zero values mean "not set" and leave the
// corresponding default in place.
type File struct {
	Site struct {
		BaseURL   string `yaml:"base_url,omitempty"`
		Username  string `yaml:"username,omitempty"`
		Password  string `yaml:"password,omitempty"`
		BasicUser string `yaml:"basic_user,omitempty"`
		BasicPass string `yaml:"basic_pass,omitempty"`
		Cookie    string `yaml:"cookie,omitempty"`
		LoginPath string `yaml:"login_path,omitempty"`
		ProxyURL  string `yaml:"proxy_url,omitempty"`
		UserAgent string `yaml:"user_agent,omitempty"`
	} `yaml:"site,omitempty"`

	Crawl struct {
		StartURL        string `yaml:"start_url,omitempty"`
		Concurrency     int    `yaml:"concurrency,omitempty"`
		Delay           string `yaml:"delay,omitempty"`
		MaxRetries      int    `yaml:"max_retries,omitempty"`
		RenderWaitLimit int    `yaml:"render_wait_limit,omitempty"`
		PageTimeout     string `yaml:"page_timeout,omitempty"`
		FileTimeout     string `yaml:"file_timeout,omitempty"`
		MaxDepth        int    `yaml:"max_depth,omitempty"`
		Resume          bool   `yaml:"resume,omitempty"`
	} `yaml:"crawl,omitempty"`

	Extract struct {
		MaxAttachmentMB   int64    `yaml:"max_attachment_mb,omitempty"`
		ExcludeExtensions []string `yaml:"exclude_extensions,omitempty"`
		ExcludeMIMETypes  []string `yaml:"exclude_mime_types,omitempty"`
		OCRLanguage       string   `yaml:"ocr_language,omitempty"`
		ScratchDir        string   `yaml:"scratch_dir,omitempty"`
		DisableOCR        bool     `yaml:"disable_ocr,omitempty"`
		SkipAttachments   bool     `yaml:"skip_attachments,omitempty"`
	} `yaml:"extract,omitempty"`

	Optimize struct {
		Kind         string         `yaml:"kind,omitempty"`
		APIURL       string         `yaml:"api_url,omitempty"`
		APIKey       string         `yaml:"api_key,omitempty"`
		Model        string         `yaml:"model,omitempty"`
		Temperature  float64        `yaml:"temperature,omitempty"`
		Stream       bool           `yaml:"stream,omitempty"`
		SystemPrompt string         `yaml:"system_prompt,omitempty"`
		Extra        map[string]any `yaml:"extra,omitempty"`
		Timeout      string         `yaml:"timeout,omitempty"`
	} `yaml:"optimize,omitempty"`

	Output struct {
		Dir    string `yaml:"dir,omitempty"`
		SubDir string `yaml:"sub_dir,omitempty"`
	} `yaml:"output,omitempty"`

	State struct {
		DBPath  string `yaml:"db_path,omitempty"`
		Disable bool   `yaml:"disable,omitempty"`
	} `yaml:"state,omitempty"`

	Notify struct {
		CallbackURL string `yaml:"callback_url,omitempty"`
		Timeout     string `yaml:"timeout,omitempty"`
	} `yaml:"notify,omitempty"`
}

// LoadConfigFile loads configuration from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .wikimirror in the current directory
// 3. Look for .wikimirror in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	// Check current directory
	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	// Check home directory
	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Apply copies the file's non-zero values onto cfg. Values already set by
// CLI flags keep their flag value only when the file leaves them unset;
// explicit flags are expected to be applied after Apply by the command
// layer, so precedence there stays flags > file > defaults.
func (cf *File) Apply(cfg *Config) error {
	if cf.Site.BaseURL != "" {
		cfg.Site.BaseURL = cf.Site.BaseURL
	}
	if cf.Site.Username != "" {
		cfg.Site.Username = cf.Site.Username
	}
	if cf.Site.Password != "" {
		cfg.Site.Password = cf.Site.Password
	}
	if cf.Site.BasicUser != "" {
		cfg.Site.BasicUser = cf.Site.BasicUser
	}
	if cf.Site.BasicPass != "" {
		cfg.Site.BasicPass = cf.Site.BasicPass
	}
	if cf.Site.Cookie != "" {
		cfg.Site.Cookie = cf.Site.Cookie
	}
	if cf.Site.LoginPath != "" {
		cfg.Site.LoginPath = cf.Site.LoginPath
	}
	if cf.Site.ProxyURL != "" {
		cfg.Site.ProxyURL = cf.Site.ProxyURL
	}
	if cf.Site.UserAgent != "" {
		cfg.Site.UserAgent = cf.Site.UserAgent
	}

	if cf.Crawl.StartURL != "" {
		cfg.Crawl.StartURL = cf.Crawl.StartURL
	}
	if cf.Crawl.Concurrency != 0 {
		cfg.Crawl.Concurrency = cf.Crawl.Concurrency
	}
	if cf.Crawl.MaxRetries != 0 {
		cfg.Crawl.MaxRetries = cf.Crawl.MaxRetries
	}
	if cf.Crawl.RenderWaitLimit != 0 {
		cfg.Crawl.RenderWaitLimit = cf.Crawl.RenderWaitLimit
	}
	if cf.Crawl.MaxDepth != 0 {
		cfg.Crawl.MaxDepth = cf.Crawl.MaxDepth
	}
	if cf.Crawl.Resume {
		cfg.Crawl.Resume = true
	}
	if err := applyDuration(&cfg.Crawl.Delay, cf.Crawl.Delay, "crawl.delay"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.Crawl.PageTimeout, cf.Crawl.PageTimeout, "crawl.page_timeout"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.Crawl.FileTimeout, cf.Crawl.FileTimeout, "crawl.file_timeout"); err != nil {
		return err
	}

	if cf.Extract.MaxAttachmentMB != 0 {
		cfg.Extract.MaxAttachmentMB = cf.Extract.MaxAttachmentMB
	}
	if len(cf.Extract.ExcludeExtensions) > 0 {
		cfg.Extract.ExcludeExtensions = cf.Extract.ExcludeExtensions
	}
	if len(cf.Extract.ExcludeMIMETypes) > 0 {
		cfg.Extract.ExcludeMIMETypes = cf.Extract.ExcludeMIMETypes
	}
	if cf.Extract.OCRLanguage != "" {
		cfg.Extract.OCRLanguage = cf.Extract.OCRLanguage
	}
	if cf.Extract.ScratchDir != "" {
		cfg.Extract.ScratchDir = cf.Extract.ScratchDir
	}
	if cf.Extract.DisableOCR {
		cfg.Extract.DisableOCR = true
	}
	if cf.Extract.SkipAttachments {
		cfg.Extract.SkipAttachments = true
	}

	if cf.Optimize.Kind != "" {
		cfg.Optimize.Kind = cf.Optimize.Kind
	}
	if cf.Optimize.APIURL != "" {
		cfg.Optimize.APIURL = cf.Optimize.APIURL
	}
	if cf.Optimize.APIKey != "" {
		cfg.Optimize.APIKey = cf.Optimize.APIKey
	}
	if cf.Optimize.Model != "" {
		cfg.Optimize.Model = cf.Optimize.Model
	}
	if cf.Optimize.Temperature != 0 {
		cfg.Optimize.Temperature = cf.Optimize.Temperature
	}
	if cf.Optimize.Stream {
		cfg.Optimize.Stream = true
	}
	if cf.Optimize.SystemPrompt != "" {
		cfg.Optimize.SystemPrompt = cf.Optimize.SystemPrompt
	}
	if len(cf.Optimize.Extra) > 0 {
		cfg.Optimize.Extra = cf.Optimize.Extra
	}
	if err := applyDuration(&cfg.Optimize.Timeout, cf.Optimize.Timeout, "optimize.timeout"); err != nil {
		return err
	}

	if cf.Output.Dir != "" {
		cfg.Output.Dir = cf.Output.Dir
	}
	if cf.Output.SubDir != "" {
		cfg.Output.SubDir = cf.Output.SubDir
	}

	if cf.State.DBPath != "" {
		cfg.State.DBPath = cf.State.DBPath
	}
	if cf.State.Disable {
		cfg.State.Disable = true
	}

	if cf.Notify.CallbackURL != "" {
		cfg.Notify.CallbackURL = cf.Notify.CallbackURL
	}
	if err := applyDuration(&cfg.Notify.Timeout, cf.Notify.Timeout, "notify.timeout"); err != nil {
		return err
	}

	return nil
}

// applyDuration parses a duration string from the config file into dst.
// Empty strings leave dst unchanged.
func applyDuration(dst *time.Duration, value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	*dst = d
	return nil
}

// ApplyEnv overlays secrets from the environment onto cfg. Environment
// values win over both flags and the config file so that credentials never
// have to be written to disk.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Site.Password = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Optimize.APIKey = v
	}
}
