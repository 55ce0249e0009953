// Package config is the root configuration for the suite. It is loaded once
// from Viper (config file plus HORA_* environment bindings) and injected
// from there; components never read ambient process state themselves.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Config is the root configuration structure for the entire suite.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Target  TargetConfig  `mapstructure:"target"`
	API     APIConfig     `mapstructure:"api"`
	Browser BrowserConfig `mapstructure:"browser"`
	Run     RunConfig     `mapstructure:"run"`

	// DemoFallback governs whether an address-shaped capture substitutes
	// placeholder route values instead of failing loudly.
	DemoFallback bool `mapstructure:"demo_fallback"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" json:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error string `mapstructure:"error" json:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// TargetConfig describes the map web application under test.
type TargetConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	TileFragment      string        `mapstructure:"tile_fragment"`
	RouteFragments    []string      `mapstructure:"route_fragments"`
	OverlaySelectors  []string      `mapstructure:"overlay_selectors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	TileTimeout       time.Duration `mapstructure:"tile_timeout"`
	CaptureTimeout    time.Duration `mapstructure:"capture_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
}

// APIConfig describes the direct (UI-free) directions endpoint.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Key     string        `mapstructure:"key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Device is a named viewport preset applied to a browser session.
type Device struct {
	Width  int64 `mapstructure:"width"`
	Height int64 `mapstructure:"height"`
	Mobile bool  `mapstructure:"mobile"`
}

// BrowserConfig holds settings for the headless browser.
type BrowserConfig struct {
	Headless        bool              `mapstructure:"headless"`
	Debug           bool              `mapstructure:"debug"`
	IgnoreTLSErrors bool              `mapstructure:"ignore_tls_errors"`
	Args            []string          `mapstructure:"args"`
	DefaultDevice   string            `mapstructure:"default_device"`
	Devices         map[string]Device `mapstructure:"devices"`
}

// RunConfig holds settings for scenario execution (populated by CLI flags).
type RunConfig struct {
	Features    string `mapstructure:"features"`
	Tags        string `mapstructure:"tags"`
	Format      string `mapstructure:"format"`
	Concurrency int    `mapstructure:"concurrency"`
	Retries     int    `mapstructure:"retries"`
}

// SetDefaults registers the defaults so the suite runs with a minimal config.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "hora")
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("target.base_url", "https://maps.openrouteservice.org")
	v.SetDefault("target.tile_fragment", "tile")
	v.SetDefault("target.route_fragments", []string{"/v2/directions/", "/geocode/", "/pelias/"})
	v.SetDefault("target.overlay_selectors", []string{
		"button[aria-label='Close']",
		".cky-btn-accept",
		".v-dialog--active button",
		"#onetrust-accept-btn-handler",
	})
	v.SetDefault("target.navigation_timeout", 30*time.Second)
	v.SetDefault("target.tile_timeout", 15*time.Second)
	v.SetDefault("target.capture_timeout", 15*time.Second)
	v.SetDefault("target.settle_delay", 2*time.Second)

	v.SetDefault("api.base_url", "https://api.openrouteservice.org")
	v.SetDefault("api.timeout", 20*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.default_device", "desktop")
	v.SetDefault("browser.devices", map[string]Device{
		"desktop": {Width: 1920, Height: 1080},
		"tablet":  {Width: 820, Height: 1180, Mobile: true},
		"phone":   {Width: 390, Height: 844, Mobile: true},
	})

	v.SetDefault("run.features", "features")
	v.SetDefault("run.format", "pretty")
	v.SetDefault("run.concurrency", 1)
	v.SetDefault("run.retries", 1)

	v.SetDefault("demo_fallback", false)
}

// Validate checks the invariants the rest of the suite relies on.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("target.base_url is a required configuration field")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is a required configuration field")
	}
	if c.Target.CaptureTimeout <= 0 {
		return fmt.Errorf("target.capture_timeout must be a positive duration")
	}
	if c.Run.Concurrency < 1 {
		return fmt.Errorf("run.concurrency must be a positive integer")
	}
	if c.Run.Retries < 0 {
		return fmt.Errorf("run.retries must not be negative")
	}
	if _, ok := c.Browser.Devices[c.Browser.DefaultDevice]; c.Browser.DefaultDevice != "" && !ok {
		return fmt.Errorf("browser.default_device %q is not a configured device", c.Browser.DefaultDevice)
	}
	return nil
}

// DeviceByTag resolves a device preset name, falling back to the default.
func (c *Config) DeviceByTag(name string) Device {
	if d, ok := c.Browser.Devices[name]; ok {
		return d
	}
	if d, ok := c.Browser.Devices[c.Browser.DefaultDevice]; ok {
		return d
	}
	return Device{Width: 1280, Height: 800}
}

// Load initializes the configuration singleton from Viper. It is the only
// production loading path: unmarshal, validate, store.
func Load(v *viper.Viper) error {
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			loadErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Set stores the given instance directly. Intended for tests.
func Set(cfg *Config) {
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
