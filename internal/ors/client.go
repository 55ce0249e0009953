// Package ors is the UI-free validation path: it talks to the
// openrouteservice directions endpoint directly and checks the same
// response contract the browser path captures.
package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vmurashev365/hora-openrouteservice/internal/config"
	"github.com/vmurashev365/hora-openrouteservice/internal/geojson"
)

// Profile selects the travel profile for a directions request.
type Profile string

const (
	ProfileDriving Profile = "driving-car"
	ProfileHGV     Profile = "driving-hgv"
	ProfileCycling Profile = "cycling-regular"
	ProfileWalking Profile = "foot-walking"
)

// Profiles lists every supported travel profile.
var Profiles = []Profile{ProfileDriving, ProfileHGV, ProfileCycling, ProfileWalking}

// ParseProfile validates a profile string.
func ParseProfile(s string) (Profile, error) {
	for _, p := range Profiles {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported travel profile %q (supported: %v)", s, Profiles)
}

// Transport tuning for a short-lived API validation client.
const (
	defaultRequestTimeout      = 20 * time.Second
	defaultDialTimeout         = 15 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
	defaultMaxIdleConns        = 20
	defaultIdleConnTimeout     = 90 * time.Second
)

// Config holds the directions endpoint settings.
type Config struct {
	BaseURL string
	Key     string
	Timeout time.Duration
}

// ConfigFrom maps the suite configuration onto the client settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL: cfg.API.BaseURL,
		Key:     cfg.API.Key,
		Timeout: cfg.API.Timeout,
	}
}

// Client issues directions requests against the public HTTP interface.
type Client struct {
	hc     *http.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient builds a client with a tuned transport.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	transport := &http.Transport{
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
		MaxIdleConns:        defaultMaxIdleConns,
		IdleConnTimeout:     defaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		hc: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		cfg:    cfg,
		logger: logger.Named("ors_client"),
	}
}

// directionsRequest is the two-point coordinate body of a directions call.
type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

// Directions requests a route between two points for the given profile and
// returns the parsed GeoJSON feature collection.
func (c *Client) Directions(ctx context.Context, profile Profile, start, end geojson.Point) (*geojson.FeatureCollection, error) {
	url := fmt.Sprintf("%s/v2/directions/%s/geojson", c.cfg.BaseURL, profile)

	body, err := json.Marshal(directionsRequest{
		Coordinates: [][2]float64{
			{start.Lon, start.Lat},
			{end.Lon, end.Lat},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode directions request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create directions request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json")
	if c.cfg.Key != "" {
		req.Header.Set("Authorization", c.cfg.Key)
	}

	c.logger.Debug("Requesting directions",
		zap.String("profile", string(profile)),
		zap.Float64("start_lon", start.Lon), zap.Float64("start_lat", start.Lat),
		zap.Float64("end_lon", end.Lon), zap.Float64("end_lat", end.Lat),
	)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read directions response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions endpoint returned %d for profile %s: %s",
			resp.StatusCode, profile, truncate(payload, 200))
	}

	fc, err := geojson.Decode(payload)
	if err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("directions response for profile %s has no features", profile)
	}
	return fc, nil
}

// ValidateRoute checks the route response contract: a first feature with a
// positive distance/duration summary and a geometry of at least two points.
func ValidateRoute(fc *geojson.FeatureCollection) error {
	if fc == nil || len(fc.Features) == 0 {
		return fmt.Errorf("route response has no features")
	}
	first := fc.Features[0]
	s := first.Properties.Summary
	if s == nil {
		return fmt.Errorf("route feature is missing the distance/duration summary")
	}
	if s.Distance <= 0 {
		return fmt.Errorf("route distance must be positive, got %f", s.Distance)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("route duration must be positive, got %f", s.Duration)
	}
	if len(first.Geometry.Coordinates) < 2 {
		return fmt.Errorf("route geometry has %d points, want at least 2", len(first.Geometry.Coordinates))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
