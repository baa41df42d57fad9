// Package config loads pagecheck configuration from defaults, an optional
// pagecheck.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dev/bravebird/pagecheck/pkg/pages"
	"dev/bravebird/pagecheck/pkg/session"
	"dev/bravebird/pagecheck/pkg/snapshot"
	"dev/bravebird/pagecheck/pkg/verify"
)

// Config holds all configuration for pagecheck
type Config struct {
	Browser     BrowserConfig     `mapstructure:"browser"`
	Memory      MemoryConfig      `mapstructure:"memory"`
	Verify      VerifyConfig      `mapstructure:"verify"`
	Todo        TodoConfig        `mapstructure:"todo"`
	Temporal    TemporalConfig    `mapstructure:"temporal"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	API         APIConfig         `mapstructure:"api"`
	Scenarios   ScenariosConfig   `mapstructure:"scenarios"`
	Screenshots ScreenshotsConfig `mapstructure:"screenshots"`
	Log         LogConfig         `mapstructure:"log"`
}

// BrowserConfig holds browser session settings
type BrowserConfig struct {
	Backend   string `mapstructure:"backend"`
	Headless  bool   `mapstructure:"headless"`
	Bin       string `mapstructure:"bin"`
	RemoteURL string `mapstructure:"remote_url"`
}

// MemoryConfig holds the simulated latencies of the in-memory backend
type MemoryConfig struct {
	RenderLag  time.Duration `mapstructure:"render_lag"`
	PersistLag time.Duration `mapstructure:"persist_lag"`
	TornReads  int           `mapstructure:"torn_reads"`
}

// VerifyConfig holds the default polling budget for checks
type VerifyConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
}

// TodoConfig locates the application under test
type TodoConfig struct {
	URL        string `mapstructure:"url"`
	StorageKey string `mapstructure:"storage_key"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	TaskQueue string `mapstructure:"task_queue"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type APIConfig struct {
	Port string `mapstructure:"port"`
}

type ScenariosConfig struct {
	Dir string `mapstructure:"dir"`
}

// ScreenshotsConfig is where failure screenshots are written and served from
type ScreenshotsConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// envAliases maps config keys to the plain environment names used by the
// deployment scripts. PAGECHECK_<KEY> works for every key as well.
var envAliases = map[string]string{
	"temporal.host":   "TEMPORAL_HOST",
	"mysql.dsn":       "MYSQL_DSN",
	"api.port":        "PORT",
	"browser.bin":     "CHROME_BIN",
	"screenshots.dir": "SCREENSHOT_DIR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.backend", string(session.BackendRod))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.remote_url", "")

	v.SetDefault("memory.render_lag", 50*time.Millisecond)
	v.SetDefault("memory.persist_lag", 150*time.Millisecond)
	v.SetDefault("memory.torn_reads", 1)

	v.SetDefault("verify.timeout", verify.DefaultTimeout)
	v.SetDefault("verify.interval", verify.DefaultInterval)
	v.SetDefault("verify.max_interval", verify.DefaultMaxInterval)

	v.SetDefault("todo.url", pages.DefaultTodoURL)
	v.SetDefault("todo.storage_key", snapshot.DefaultKey)

	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.task_queue", "pagecheck")
	v.SetDefault("mysql.dsn", "pagecheck:pagecheck@tcp(localhost:3306)/pagecheck?parseTime=true")
	v.SetDefault("api.port", "8080")
	v.SetDefault("scenarios.dir", "scenarios")
	v.SetDefault("screenshots.dir", "/tmp/screenshots")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads configuration. An empty path searches for pagecheck.yaml in the
// working directory; a missing file is not an error in that case.
// Precedence (highest to lowest):
// 1. PAGECHECK_* and the aliased environment variables
// 2. Config file
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pagecheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("PAGECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, "PAGECHECK_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	if _, err := session.ParseBackend(c.Browser.Backend); err != nil {
		return fmt.Errorf("browser.backend: %w", err)
	}
	if c.Verify.Timeout <= 0 {
		return errors.New("verify.timeout must be positive")
	}
	if c.Verify.Interval <= 0 || c.Verify.MaxInterval < c.Verify.Interval {
		return errors.New("verify.interval must be positive and not above verify.max_interval")
	}
	return nil
}

// SessionConfig converts the browser settings for session.NewPool
func (c *Config) SessionConfig() session.Config {
	backend, _ := session.ParseBackend(c.Browser.Backend)
	return session.Config{
		Backend:    backend,
		Headless:   c.Browser.Headless,
		Bin:        c.Browser.Bin,
		RemoteURL:  c.Browser.RemoteURL,
		TodoURL:    c.Todo.URL,
		StorageKey: c.Todo.StorageKey,
		RenderLag:  c.Memory.RenderLag,
		PersistLag: c.Memory.PersistLag,
		TornReads:  c.Memory.TornReads,
	}
}

// VerifyOptions converts the polling budget for pages.WithVerifyOptions
func (c *Config) VerifyOptions() []verify.Option {
	return []verify.Option{
		verify.WithTimeout(c.Verify.Timeout),
		verify.WithInterval(c.Verify.Interval, c.Verify.MaxInterval),
	}
}
