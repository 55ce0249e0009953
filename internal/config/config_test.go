package config

import (
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetSingleton() {
	instance = nil
	once = sync.Once{}
	loadErr = nil
}

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestGetUninitializedPanics(t *testing.T) {
	resetSingleton()
	assert.Panics(t, func() { Get() })
}

func TestLoadAndGet(t *testing.T) {
	resetSingleton()
	t.Cleanup(resetSingleton)

	v := viper.New()
	SetDefaults(v)
	v.Set("target.base_url", "https://maps.example.org")
	v.Set("demo_fallback", true)

	require.NoError(t, Load(v))

	cfg := Get()
	assert.Equal(t, "https://maps.example.org", cfg.Target.BaseURL)
	assert.True(t, cfg.DemoFallback)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestSetInjectsAnInstance(t *testing.T) {
	resetSingleton()
	t.Cleanup(resetSingleton)

	Set(&Config{DemoFallback: true})
	assert.True(t, Get().DemoFallback)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	resetSingleton()
	t.Cleanup(resetSingleton)

	v := viper.New()
	SetDefaults(v)
	v.Set("target.base_url", "")

	err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target.base_url")

	// A failed load never leaves a partial instance behind.
	assert.Panics(t, func() { Get() })

	// The outcome is sticky until the singleton is reset.
	assert.Error(t, Load(v))
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://maps.openrouteservice.org", cfg.Target.BaseURL)
	assert.Equal(t, "https://api.openrouteservice.org", cfg.API.BaseURL)
	assert.Contains(t, cfg.Target.RouteFragments, "/v2/directions/")
	assert.NotEmpty(t, cfg.Target.OverlaySelectors)
	assert.Equal(t, 15*time.Second, cfg.Target.CaptureTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.DemoFallback, "fallback must be opt-in")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing target base url", func(c *Config) { c.Target.BaseURL = "" }, "target.base_url"},
		{"missing api base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url"},
		{"zero capture timeout", func(c *Config) { c.Target.CaptureTimeout = 0 }, "capture_timeout"},
		{"zero concurrency", func(c *Config) { c.Run.Concurrency = 0 }, "concurrency"},
		{"negative retries", func(c *Config) { c.Run.Retries = -1 }, "retries"},
		{"unknown default device", func(c *Config) { c.Browser.DefaultDevice = "watch" }, "default_device"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDeviceByTag(t *testing.T) {
	cfg := defaultConfig(t)

	phone := cfg.DeviceByTag("phone")
	assert.Equal(t, int64(390), phone.Width)
	assert.True(t, phone.Mobile)

	// Unknown names fall back to the default device.
	fallback := cfg.DeviceByTag("smartwatch")
	assert.Equal(t, cfg.Browser.Devices["desktop"], fallback)
	assert.False(t, fallback.Mobile)
}

func TestDeviceByTagWithoutPresets(t *testing.T) {
	cfg := &Config{}
	d := cfg.DeviceByTag("anything")
	assert.Positive(t, d.Width)
	assert.Positive(t, d.Height)
}
