// Package config loads pagewright settings. Values are layered defaults,
// then the JSONC config file, then PAGEWRIGHT_* environment variables, then
// bound command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tailscale/hujson"

	"github.com/inovacc/pagewright/internal/application"
)

// FileName is the config file looked up when no path is given.
const FileName = "pagewright.jsonc"

// EnvPrefix prefixes every environment override, e.g. PAGEWRIGHT_SERVER_PORT.
const EnvPrefix = "PAGEWRIGHT"

// Store backends.
const (
	BackendBolt = "bolt"
	BackendRTDB = "rtdb"
)

// Config is the resolved configuration.
type Config struct {
	DataDir    string           `mapstructure:"data_dir"`
	LogLevel   string           `mapstructure:"log_level"`
	Store      StoreConfig      `mapstructure:"store"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Server     ServerConfig     `mapstructure:"server"`
	Site       SiteConfig       `mapstructure:"site"`
	Publish    PublishConfig    `mapstructure:"publish"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	Notify     NotifyConfig     `mapstructure:"notify"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type StoreConfig struct {
	Backend     string `mapstructure:"backend"`
	Path        string `mapstructure:"path"`
	URL         string `mapstructure:"url"`
	Token       string `mapstructure:"token"`
	// Credentials is a service account key file for the rtdb backend.
	Credentials string `mapstructure:"credentials"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	UsersDB  string        `mapstructure:"users_db"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type SiteConfig struct {
	Template   string   `mapstructure:"template"`
	SourceDir  string   `mapstructure:"source_dir"`
	OutputDir  string   `mapstructure:"output_dir"`
	Assets     []string `mapstructure:"assets"`
	AdminFiles []string `mapstructure:"admin_files"`
}

// TemplatePath resolves the template against the source directory.
func (s SiteConfig) TemplatePath() string {
	if filepath.IsAbs(s.Template) {
		return s.Template
	}

	return filepath.Join(s.SourceDir, s.Template)
}

type PublishConfig struct {
	Strategy    string `mapstructure:"strategy"`
	Owner       string `mapstructure:"owner"`
	Repo        string `mapstructure:"repo"`
	Branch      string `mapstructure:"branch"`
	Token       string `mapstructure:"token"`
	WebhookURL  string `mapstructure:"webhook_url"`
	EventType   string `mapstructure:"event_type"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
	APIURL      string `mapstructure:"api_url"`
	LogDB       string `mapstructure:"log_db"`
}

type CloudinaryConfig struct {
	CloudName    string `mapstructure:"cloud_name"`
	UploadPreset string `mapstructure:"upload_preset"`
	Folder       string `mapstructure:"folder"`
}

// NotifyConfig sends publish outcomes to a Slack incoming webhook.
type NotifyConfig struct {
	SlackWebhook string `mapstructure:"slack_webhook"`
	SlackChannel string `mapstructure:"slack_channel"`
	SiteURL      string `mapstructure:"site_url"`
}

// Options controls where Load looks.
type Options struct {
	// Path is an explicit config file. A missing explicit file is an error.
	Path string
	// SearchDirs are tried in order for FileName when Path is empty.
	SearchDirs []string
	// Flags maps config keys to the flags that override them.
	Flags map[string]*pflag.Flag
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("store.backend", BackendBolt)
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.token", "")
	v.SetDefault("store.credentials", "")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.users_db", "")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)

	v.SetDefault("site.template", "index.html")
	v.SetDefault("site.source_dir", ".")
	v.SetDefault("site.output_dir", "dist")
	v.SetDefault("site.assets", []string{})
	v.SetDefault("site.admin_files", []string{})

	v.SetDefault("publish.strategy", "commit")
	v.SetDefault("publish.owner", "")
	v.SetDefault("publish.repo", "")
	v.SetDefault("publish.branch", "main")
	v.SetDefault("publish.token", "")
	v.SetDefault("publish.webhook_url", "")
	v.SetDefault("publish.event_type", "publish")
	v.SetDefault("publish.author_name", "pagewright")
	v.SetDefault("publish.author_email", "pagewright@users.noreply.github.com")
	v.SetDefault("publish.api_url", "")
	v.SetDefault("publish.log_db", "")

	v.SetDefault("cloudinary.cloud_name", "")
	v.SetDefault("cloudinary.upload_preset", "")
	v.SetDefault("cloudinary.folder", "")

	v.SetDefault("notify.slack_webhook", "")
	v.SetDefault("notify.slack_channel", "")
	v.SetDefault("notify.site_url", "")
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file, err := findFile(opts)
	if err != nil {
		return nil, err
	}

	if file != "" {
		if err := readJSONC(v, file); err != nil {
			return nil, err
		}
	}

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}

		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.File = file

	if err := cfg.resolve(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func findFile(opts Options) (string, error) {
	if opts.Path != "" {
		if _, err := os.Stat(opts.Path); err != nil {
			return "", fmt.Errorf("config file %s: %w", opts.Path, err)
		}

		return opts.Path, nil
	}

	dirs := opts.SearchDirs
	if dirs == nil {
		dirs = []string{"."}
		if appDir, err := application.GetApplicationDirectory(); err == nil {
			dirs = append(dirs, appDir)
		}
	}

	for _, dir := range dirs {
		p := filepath.Join(dir, FileName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

// readJSONC feeds a JSON-with-comments file to viper.
func readJSONC(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	v.SetConfigType("json")

	if err := v.ReadConfig(bytes.NewReader(std)); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return nil
}

// resolve fills paths derived from the data directory.
func (c *Config) resolve() error {
	if c.DataDir == "" {
		dir, err := application.GetApplicationDirectory()
		if err != nil {
			return err
		}

		c.DataDir = dir
	}

	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir, "content.db")
	}

	if c.Auth.UsersDB == "" {
		c.Auth.UsersDB = filepath.Join(c.DataDir, "users.db")
	}

	if c.Publish.LogDB == "" {
		c.Publish.LogDB = filepath.Join(c.DataDir, "publish.db")
	}

	return nil
}

// SecretFile is where a generated auth secret is kept.
func (c *Config) SecretFile() string {
	return filepath.Join(c.DataDir, "auth.secret")
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendBolt:
	case BackendRTDB:
		if c.Store.URL == "" {
			errs = append(errs, errors.New("store.url is required for the rtdb backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}

	switch c.Publish.Strategy {
	case "commit", "dispatch", "webhook":
	default:
		errs = append(errs, fmt.Errorf("publish.strategy: unknown strategy %q", c.Publish.Strategy))
	}

	if c.Notify.SlackWebhook != "" && !strings.HasPrefix(c.Notify.SlackWebhook, "https://") {
		errs = append(errs, errors.New("notify.slack_webhook: must be an https URL"))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}
