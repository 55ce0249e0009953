// Package runner wires the gherkin scenarios to the page object and the
// directions client, and owns the execution policy: tag selection,
// parallelism, and the bounded retry of a failed run. Retries live here and
// nowhere below; the page object never retries internally.
package runner

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
	"go.uber.org/zap"

	"github.com/vmurashev365/hora-openrouteservice/internal/browser"
	"github.com/vmurashev365/hora-openrouteservice/internal/config"
	"github.com/vmurashev365/hora-openrouteservice/internal/ors"
)

// Options selects which scenarios run and how.
type Options struct {
	Features    string
	Tags        string
	Format      string
	Concurrency int
	Retries     int
}

// OptionsFrom maps the run section of the suite configuration.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Features:    cfg.Run.Features,
		Tags:        cfg.Run.Tags,
		Format:      cfg.Run.Format,
		Concurrency: cfg.Run.Concurrency,
		Retries:     cfg.Run.Retries,
	}
}

// CombineTags joins tag expressions with a logical AND, skipping empties.
func CombineTags(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, " && ")
}

// Deps are the scenario collaborators. The browser manager is created
// lazily so API-only runs never launch Chrome.
type Deps struct {
	Cfg    *config.Config
	Logger *zap.Logger
	API    *ors.Client

	rootCtx    context.Context
	mu         sync.Mutex
	browserMgr *browser.Manager
}

// NewDeps builds the collaborators for a run.
func NewDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) *Deps {
	return &Deps{
		Cfg:     cfg,
		Logger:  logger,
		API:     ors.NewClient(ors.ConfigFrom(cfg), logger),
		rootCtx: ctx,
	}
}

// BrowserManager returns the shared manager, creating it on first use.
// Sessions created from it stay isolated per scenario.
func (d *Deps) BrowserManager() (*browser.Manager, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browserMgr != nil {
		return d.browserMgr, nil
	}
	mgr, err := browser.NewManager(d.rootCtx, d.Logger, d.Cfg)
	if err != nil {
		return nil, err
	}
	d.browserMgr = mgr
	return mgr, nil
}

// Shutdown releases the browser if one was started.
func (d *Deps) Shutdown(ctx context.Context) {
	d.mu.Lock()
	mgr := d.browserMgr
	d.browserMgr = nil
	d.mu.Unlock()
	if mgr != nil {
		_ = mgr.Shutdown(ctx)
	}
}

// Runner executes the godog suite.
type Runner struct {
	opts   Options
	deps   *Deps
	logger *zap.Logger
}

// New creates a runner.
func New(opts Options, deps *Deps) *Runner {
	return &Runner{
		opts:   opts,
		deps:   deps,
		logger: deps.Logger.Named("runner"),
	}
}

// Run executes the selected scenarios, re-running the suite up to the
// configured retry bound when it fails. Returns the godog exit status.
func (r *Runner) Run(ctx context.Context) int {
	format := r.opts.Format
	if format == "" {
		format = "pretty"
	}

	var status int
	for attempt := 0; ; attempt++ {
		suite := godog.TestSuite{
			Name:                "hora-openrouteservice",
			ScenarioInitializer: r.initializeScenario,
			Options: &godog.Options{
				Format:         format,
				Paths:          []string{r.opts.Features},
				Tags:           r.opts.Tags,
				Concurrency:    r.opts.Concurrency,
				Strict:         true,
				Output:         colors.Colored(os.Stdout),
				DefaultContext: ctx,
			},
		}
		status = suite.Run()
		if status == 0 {
			if attempt > 0 {
				r.logger.Info("Suite passed on retry", zap.Int("attempt", attempt+1))
			}
			return 0
		}
		if ctx.Err() != nil || attempt >= r.opts.Retries {
			return status
		}
		r.logger.Warn("Suite failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("retries_left", r.opts.Retries-attempt),
		)
	}
}
