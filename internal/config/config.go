// Package config provides configuration management for seedling using Viper
// for loading from files, environment variables, and command-line flags.
//
// Configuration is read from .seedling.yml (or the file named by --config or
// SEEDLING_CONFIG_FILE), overridden by SEEDLING_<SECTION>_<KEY> environment
// variables and bound flags.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Module load modes.
const (
	ModeTemplate = "template"
	ModeStatic   = "static"
)

// ShortcutFiles are searched, in order, for the data source URL when none
// is configured.
var ShortcutFiles = []string{"test-server.desktop", "test-server.url"}

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	Render      RenderConfig      `mapstructure:"render" yaml:"render" json:"render"`
	DataSource  DataSourceConfig  `mapstructure:"data_source" yaml:"data_source" json:"data_source"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development" json:"development"`
	Log         LogConfig         `mapstructure:"log" yaml:"log" json:"log"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host" yaml:"host" json:"host"`
	Port           int           `mapstructure:"port" yaml:"port" json:"port"`
	Environment    string        `mapstructure:"environment" yaml:"environment" json:"environment"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" json:"request_timeout"`

	// RateLimit is the number of requests per minute allowed per client
	// address. Zero disables limiting.
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

type RenderConfig struct {
	Module        string `mapstructure:"module" yaml:"module" json:"module"`
	Mode          string `mapstructure:"mode" yaml:"mode" json:"mode"`
	AssetsDir     string `mapstructure:"assets_dir" yaml:"assets_dir" json:"assets_dir"`
	BundleScript  string `mapstructure:"bundle_script" yaml:"bundle_script" json:"bundle_script"`
	Stylesheet    string `mapstructure:"stylesheet" yaml:"stylesheet" json:"stylesheet"`
	Title         string `mapstructure:"title" yaml:"title" json:"title"`
	SSRTarget     string `mapstructure:"ssr_target" yaml:"ssr_target" json:"ssr_target"`
	RouteBasePath string `mapstructure:"route_base_path" yaml:"route_base_path" json:"route_base_path"`
	Parallel      bool   `mapstructure:"parallel" yaml:"parallel" json:"parallel"`
	MaxPasses     int    `mapstructure:"max_passes" yaml:"max_passes" json:"max_passes"`
	Concurrency   int    `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
}

type DataSourceConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Token   string        `mapstructure:"token" yaml:"token" json:"token"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

type DevelopmentConfig struct {
	Watch    bool          `mapstructure:"watch" yaml:"watch" json:"watch"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Production reports whether the production diagnostic policy applies.
func (c *Config) Production() bool {
	return c.Server.Environment == EnvProduction
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SEEDLING"

// BindEnv makes SEEDLING_<SECTION>_<KEY> variables override v's keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 0)

	v.SetDefault("render.module", "ssr/page.html")
	v.SetDefault("render.mode", "")
	v.SetDefault("render.assets_dir", "www")
	v.SetDefault("render.bundle_script", "index.js")
	v.SetDefault("render.stylesheet", "")
	v.SetDefault("render.title", "Seedling")
	v.SetDefault("render.ssr_target", "hydrate")
	v.SetDefault("render.route_base_path", "/")
	v.SetDefault("render.parallel", false)
	v.SetDefault("render.max_passes", 16)
	v.SetDefault("render.concurrency", 8)

	v.SetDefault("data_source.base_url", "")
	v.SetDefault("data_source.token", "")
	v.SetDefault("data_source.timeout", 5*time.Second)

	v.SetDefault("development.watch", true)
	v.SetDefault("development.debounce", 100*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if result := ValidateConfigWithDetails(config); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", &result.Errors[0])
	}
	return config, nil
}

// Decode resolves the configuration held by v without validating it.
func Decode(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	if config.Render.Mode == "" {
		config.Render.Mode = ModeTemplate
		if config.Production() {
			config.Render.Mode = ModeStatic
		}
	}

	if config.DataSource.BaseURL == "" {
		url, err := findShortcutURL(".")
		if err != nil {
			return nil, err
		}
		config.DataSource.BaseURL = url
	}
	return &config, nil
}

var shortcutURL = regexp.MustCompile(`(?im)^URL=(.*)$`)

// ReadShortcutURL returns the URL= entry of an internet shortcut or desktop
// entry file.
func ReadShortcutURL(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := shortcutURL.FindStringSubmatch(strings.TrimRight(scanner.Text(), "\r")); m != nil {
			return strings.TrimSpace(m[1]), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return "", nil
}

func findShortcutURL(dir string) (string, error) {
	for _, name := range ShortcutFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		url, err := ReadShortcutURL(path)
		if err != nil {
			return "", fmt.Errorf("data source shortcut: %w", err)
		}
		if url != "" {
			return url, nil
		}
	}
	return "", nil
}
