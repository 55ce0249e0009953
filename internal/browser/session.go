package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vmurashev365/hora-openrouteservice/internal/config"
)

// Viewport is the current inner size of the session's window.
type Viewport struct {
	Width  float64
	Height float64
}

// Session wraps one isolated ChromeDP context (a tab). It is owned by a
// single scenario and must not be shared.
type Session struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	manager *Manager
	device  config.Device
	pointer *Pointer
}

func newSession(
	ctx context.Context,
	cancel context.CancelFunc,
	manager *Manager,
	logger *zap.Logger,
	device config.Device,
) (*Session, error) {
	sessionID := uuid.New().String()
	s := &Session{
		id:      sessionID,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.Named("session").With(zap.String("session_id", sessionID)),
		manager: manager,
		device:  device,
	}
	s.pointer = NewPointer(s.logger.Named("pointer"))

	// Bring the tab up, enable network events for response capture, and
	// apply the device viewport before any navigation.
	init := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.Enable().Do(ctx)
		}),
		chromedp.EmulateViewport(device.Width, device.Height,
			func(p1 *emulation.SetDeviceMetricsOverrideParams, p2 *emulation.SetTouchEmulationEnabledParams) {
				p1.Mobile = device.Mobile
				p2.Enabled = device.Mobile
			}),
		chromedp.Navigate("about:blank"),
	}
	if err := chromedp.Run(ctx, init); err != nil {
		return nil, fmt.Errorf("failed to initialize browser context connection: %w", err)
	}

	s.logger.Debug("Session ready",
		zap.Int64("width", device.Width),
		zap.Int64("height", device.Height),
		zap.Bool("mobile", device.Mobile),
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Context returns the underlying ChromeDP context. Listeners and CDP
// commands for this tab must use it.
func (s *Session) Context() context.Context { return s.ctx }

// createActionContext derives a run context cancelled by either the
// session's lifetime or the per-operation context.
func (s *Session) createActionContext(opCtx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()
	return runCtx, cancel
}

// Navigate loads the URL and waits for the document body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	runCtx, cancel := s.createActionContext(ctx)
	defer cancel()
	return chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Viewport reports the window's current inner dimensions.
func (s *Session) Viewport(ctx context.Context) (Viewport, error) {
	runCtx, cancel := s.createActionContext(ctx)
	defer cancel()
	var dims []float64
	if err := chromedp.Run(runCtx,
		chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims),
	); err != nil {
		return Viewport{}, fmt.Errorf("failed to read viewport dimensions: %w", err)
	}
	if len(dims) != 2 || dims[0] <= 0 || dims[1] <= 0 {
		return Viewport{}, fmt.Errorf("viewport dimensions unavailable: %v", dims)
	}
	return Viewport{Width: dims[0], Height: dims[1]}, nil
}

// ClickAt dispatches a humanized pointer click at the given viewport
// coordinates.
func (s *Session) ClickAt(ctx context.Context, x, y float64) error {
	runCtx, cancel := s.createActionContext(ctx)
	defer cancel()
	return s.pointer.ClickAt(runCtx, x, y)
}

// TryDismiss attempts a short visibility check and click on a selector.
// Absence of the element is not an error; it reports whether it clicked.
func (s *Session) TryDismiss(ctx context.Context, selector string, wait time.Duration) bool {
	runCtx, cancel := s.createActionContext(ctx)
	defer cancel()
	tctx, tcancel := context.WithTimeout(runCtx, wait)
	defer tcancel()
	err := chromedp.Run(tctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	return err == nil
}

// Sleep pauses inside the browser context, honoring cancellation.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	runCtx, cancel := s.createActionContext(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Sleep(d))
}

// Close tears down the tab. In-flight listeners are implicitly abandoned.
func (s *Session) Close(ctx context.Context) error {
	s.logger.Debug("Closing session")
	if s.manager != nil {
		s.manager.UnregisterSession(s.id)
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
