package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vmurashev365/hora-openrouteservice/internal/config"
)

// The allocator context is created lazily; no Chrome process starts until a
// session runs an action, so lifecycle tests stay cheap.
func TestManagerLifecycleWithoutSessions(t *testing.T) {
	cfg := &config.Config{
		Browser: config.BrowserConfig{Headless: true},
	}
	mgr, err := NewManager(context.Background(), zaptest.NewLogger(t), cfg)
	require.NoError(t, err)
	require.NotNil(t, mgr.allocatorCtx)

	assert.Empty(t, mgr.sessions)
	assert.NoError(t, mgr.Shutdown(context.Background()))

	select {
	case <-mgr.allocatorCtx.Done():
	default:
		t.Fatal("shutdown should cancel the allocator context")
	}
}

func TestGenerateAllocatorOptions(t *testing.T) {
	base := &Manager{cfg: &config.Config{Browser: config.BrowserConfig{Headless: true}}}
	headless := base.generateAllocatorOptions()

	withExtras := &Manager{cfg: &config.Config{Browser: config.BrowserConfig{
		Headless: true,
		Debug:    true,
		Args:     []string{"disable-dev-shm-usage", "no-sandbox"},
	}}}
	extended := withExtras.generateAllocatorOptions()

	// Debug and extra args each contribute additional flags.
	assert.Greater(t, len(extended), len(headless))
}

func TestUnregisterUnknownSessionIsHarmless(t *testing.T) {
	mgr := &Manager{
		logger:   zaptest.NewLogger(t),
		sessions: map[string]*Session{},
	}
	mgr.UnregisterSession("never-registered")
	assert.Empty(t, mgr.sessions)
}
