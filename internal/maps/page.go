// Package maps implements the page object for the openrouteservice map
// client: adaptive viewport-relative interaction, network response capture,
// and classification of the captured body into route or address readouts.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/vmurashev365/hora-openrouteservice/internal/browser"
	"github.com/vmurashev365/hora-openrouteservice/internal/config"
	"github.com/vmurashev365/hora-openrouteservice/internal/geojson"
)

// Start and end picks as fractions of the viewport. The same logical
// gesture works from small phones to large desktops.
const (
	startFracX = 0.35
	startFracY = 0.50
	endFracX   = 0.65
	endFracY   = 0.50
)

// overlayWait bounds the visibility check per dismissal selector.
const overlayWait = 1500 * time.Millisecond

// ErrCaptureTimeout is returned when no qualifying response arrives within
// the configured bound. This is the dominant real-world failure mode.
var ErrCaptureTimeout = errors.New("timed out waiting for a qualifying route/geocoding response")

// Config carries the page's target and timing settings. It is injected at
// construction; the page never reads ambient process state.
type Config struct {
	BaseURL           string
	TileFragment      string
	RouteFragments    []string
	OverlaySelectors  []string
	NavigationTimeout time.Duration
	TileTimeout       time.Duration
	CaptureTimeout    time.Duration
	SettleDelay       time.Duration
	DemoFallback      bool
}

// ConfigFrom maps the suite configuration onto the page's own settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:           cfg.Target.BaseURL,
		TileFragment:      cfg.Target.TileFragment,
		RouteFragments:    cfg.Target.RouteFragments,
		OverlaySelectors:  cfg.Target.OverlaySelectors,
		NavigationTimeout: cfg.Target.NavigationTimeout,
		TileTimeout:       cfg.Target.TileTimeout,
		CaptureTimeout:    cfg.Target.CaptureTimeout,
		SettleDelay:       cfg.Target.SettleDelay,
		DemoFallback:      cfg.DemoFallback,
	}
}

// Page drives the interactive map in one browser session. It holds at most
// one Capture at a time, overwritten on each completed interaction. A Page
// belongs to a single scenario and is not safe for concurrent use.
type Page struct {
	session *browser.Session
	cfg     Config
	logger  *zap.Logger
	capture *Capture
}

// NewPage creates the page object for the given session.
func NewPage(session *browser.Session, cfg Config, logger *zap.Logger) *Page {
	return &Page{
		session: session,
		cfg:     cfg,
		logger:  logger.Named("map_page"),
	}
}

// Navigate loads the map client, waits (best effort, bounded) for a map
// tile to come back with HTTP 200, and dismisses known overlay banners.
// Missing tiles or overlays never abort the flow.
func (p *Page) Navigate(ctx context.Context) error {
	tileCh, stopTiles := p.awaitTile()
	defer stopTiles()

	navCtx, cancel := context.WithTimeout(ctx, p.cfg.NavigationTimeout)
	defer cancel()
	if err := p.session.Navigate(navCtx, p.cfg.BaseURL); err != nil {
		return fmt.Errorf("failed to open route planner at %s: %w", p.cfg.BaseURL, err)
	}

	select {
	case url := <-tileCh:
		p.logger.Debug("Map tile observed", zap.String("url", url))
	case <-time.After(p.cfg.TileTimeout):
		p.logger.Warn("No map tile response observed before timeout, continuing anyway")
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, sel := range p.cfg.OverlaySelectors {
		if p.session.TryDismiss(ctx, sel, overlayWait) {
			p.logger.Debug("Dismissed overlay", zap.String("selector", sel))
		}
	}
	return nil
}

// SelectStart clicks the start pick point and lets the map settle.
func (p *Page) SelectStart(ctx context.Context) error {
	return p.clickFraction(ctx, startFracX, startFracY)
}

// SelectEnd clicks the end pick point and lets the map settle. Callers that
// need the resulting response captured should use CompleteInteraction,
// which installs the listener before the click.
func (p *Page) SelectEnd(ctx context.Context) error {
	return p.clickFraction(ctx, endFracX, endFracY)
}

// CompleteInteraction issues the end-point click with the response listener
// already installed, then waits (bounded) for a qualifying response and
// stores it as the page's capture. The listener goes in first so a fast
// response cannot be missed.
func (p *Page) CompleteInteraction(ctx context.Context) error {
	return p.completeAt(ctx, endFracX, endFracY)
}

// CompleteInteractionAtStart repeats the start pick point as the second
// gesture. Used by the identical start/end edge case, which must still
// produce a (degenerate) route capture.
func (p *Page) CompleteInteractionAtStart(ctx context.Context) error {
	return p.completeAt(ctx, startFracX, startFracY)
}

func (p *Page) completeAt(ctx context.Context, fx, fy float64) error {
	resultCh, stop := p.awaitQualifyingResponse()
	defer stop()

	if err := p.clickFraction(ctx, fx, fy); err != nil {
		return err
	}

	fc, err := waitForCapture(ctx, resultCh, p.cfg.CaptureTimeout)
	if err != nil {
		return err
	}
	// The assignment is atomic: a fully classified body or nothing.
	p.capture = Classify(fc)
	p.logger.Info("Response captured", zap.String("kind", p.capture.Kind.String()))
	return nil
}

// waitForCapture blocks until a qualifying body arrives, the bound expires,
// or the context ends.
func waitForCapture(ctx context.Context, ch <-chan *geojson.FeatureCollection, timeout time.Duration) (*geojson.FeatureCollection, error) {
	select {
	case fc := <-ch:
		return fc, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w (after %s)", ErrCaptureTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Page) clickFraction(ctx context.Context, fx, fy float64) error {
	vp, err := p.session.Viewport(ctx)
	if err != nil {
		return err
	}
	x, y := RelativePoint(vp.Width, vp.Height, fx, fy)
	if err := p.session.ClickAt(ctx, x, y); err != nil {
		return fmt.Errorf("failed to click map at (%.0f, %.0f): %w", x, y, err)
	}
	// Let the host application's state machine register the gesture before
	// the next one fires.
	return p.session.Sleep(ctx, p.cfg.SettleDelay)
}

// RelativePoint converts viewport fractions to pixel coordinates, clamped
// strictly inside the viewport bounds.
func RelativePoint(width, height, fx, fy float64) (float64, float64) {
	clampFrac := func(f float64) float64 {
		if f < 0 {
			return 0
		}
		if f > 1 {
			return 1
		}
		return f
	}
	clampPx := func(v, max float64) float64 {
		if v < 1 {
			return 1
		}
		if v > max-1 {
			return max - 1
		}
		return v
	}
	return clampPx(width*clampFrac(fx), width), clampPx(height*clampFrac(fy), height)
}

// matchesEndpoint reports whether the URL belongs to a known route or
// address-lookup endpoint.
func matchesEndpoint(url string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(url, f) {
			return true
		}
	}
	return false
}

// responseQualifies is the header-level filter: HTTP 200 on a known route
// or address-lookup endpoint.
func (p *Page) responseQualifies(status int64, url string) bool {
	return status == 200 && matchesEndpoint(url, p.cfg.RouteFragments)
}

// qualifyBody is the body-level filter: parseable GeoJSON with a non-empty
// features list. A nil result means the listener keeps waiting.
func qualifyBody(body []byte) *geojson.FeatureCollection {
	fc, err := geojson.Decode(body)
	if err != nil || len(fc.Features) == 0 {
		return nil
	}
	return fc
}

// awaitQualifyingResponse installs the network listener for the next
// response that satisfies all of: known path fragment, HTTP 200, and a
// parseable body with a non-empty features list. Anything else is ignored
// and the listener keeps waiting. The first qualifying response wins;
// exactly one is delivered.
func (p *Page) awaitQualifyingResponse() (<-chan *geojson.FeatureCollection, func()) {
	tabCtx := p.session.Context()
	resultCh := make(chan *geojson.FeatureCollection, 1)
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	var mu sync.Mutex
	pending := make(map[network.RequestID]string)

	execCtx := cdp.WithExecutor(tabCtx, chromedp.FromContext(tabCtx).Target)

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		select {
		case <-done:
			return
		default:
		}
		switch ev := ev.(type) {
		case *network.EventResponseReceived:
			if !p.responseQualifies(ev.Response.Status, ev.Response.URL) {
				return
			}
			mu.Lock()
			pending[ev.RequestID] = ev.Response.URL
			mu.Unlock()
		case *network.EventLoadingFinished:
			mu.Lock()
			url, ok := pending[ev.RequestID]
			if ok {
				delete(pending, ev.RequestID)
			}
			mu.Unlock()
			if !ok {
				return
			}
			// Body retrieval must not block the event dispatcher.
			go func(id network.RequestID, url string) {
				body, err := network.GetResponseBody(id).Do(execCtx)
				if err != nil {
					p.logger.Debug("Failed to fetch response body", zap.String("url", url), zap.Error(err))
					return
				}
				fc := qualifyBody(body)
				if fc == nil {
					// Not a qualifying body; keep waiting.
					return
				}
				select {
				case resultCh <- fc:
				default:
				}
			}(ev.RequestID, url)
		}
	})

	return resultCh, stop
}

// awaitTile signals the first tile resource answered with HTTP 200.
func (p *Page) awaitTile() (<-chan string, func()) {
	tabCtx := p.session.Context()
	tileCh := make(chan string, 1)
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		select {
		case <-done:
			return
		default:
		}
		if ev, ok := ev.(*network.EventResponseReceived); ok {
			if ev.Response.Status == 200 && strings.Contains(ev.Response.URL, p.cfg.TileFragment) {
				select {
				case tileCh <- ev.Response.URL:
				default:
				}
			}
		}
	})

	return tileCh, stop
}

// HasRoute reports whether a captured response is present.
func (p *Page) HasRoute() bool {
	return p.capture != nil
}

// Distance returns the captured route distance in meters. For an
// address-shaped capture the behavior is driven only by the demo fallback
// toggle: placeholder value with a warning, or a descriptive mismatch
// error. Calling before any capture is a programmer error.
func (p *Page) Distance() (float64, error) {
	c := p.capture
	if c == nil {
		return 0, ErrNoCapture
	}
	switch c.Kind {
	case KindRoute:
		return c.Route.Distance, nil
	case KindAddress:
		if p.cfg.DemoFallback {
			p.warnFallback(c.Address.Label, "distance", fallbackDistanceMeters)
			return fallbackDistanceMeters, nil
		}
		return 0, &ShapeMismatchError{Label: c.Address.Label}
	default:
		return 0, ErrUnrecognizedShape
	}
}

// Duration returns the captured route duration in seconds, with the same
// fallback semantics as Distance.
func (p *Page) Duration() (float64, error) {
	c := p.capture
	if c == nil {
		return 0, ErrNoCapture
	}
	switch c.Kind {
	case KindRoute:
		return c.Route.Duration, nil
	case KindAddress:
		if p.cfg.DemoFallback {
			p.warnFallback(c.Address.Label, "duration", fallbackDurationSeconds)
			return fallbackDurationSeconds, nil
		}
		return 0, &ShapeMismatchError{Label: c.Address.Label}
	default:
		return 0, ErrUnrecognizedShape
	}
}

// Miles converts Distance to statute miles.
func (p *Page) Miles() (float64, error) {
	d, err := p.Distance()
	if err != nil {
		return 0, err
	}
	return d / metersPerMile, nil
}

// Coordinates returns the captured geometry as a polyline of at least two
// points regardless of which response variant was captured.
func (p *Page) Coordinates() ([]geojson.Point, error) {
	c := p.capture
	if c == nil {
		return nil, ErrNoCapture
	}
	return c.coordinates()
}

func (p *Page) warnFallback(label, field string, value float64) {
	p.logger.Warn("Demo fallback engaged: address lookup captured where a route was expected",
		zap.String("label", label),
		zap.String("field", field),
		zap.Float64("placeholder", value),
	)
}
