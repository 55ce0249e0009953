package runner

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
	"go.uber.org/zap"

	"github.com/vmurashev365/hora-openrouteservice/internal/browser"
	"github.com/vmurashev365/hora-openrouteservice/internal/geojson"
	"github.com/vmurashev365/hora-openrouteservice/internal/maps"
	"github.com/vmurashev365/hora-openrouteservice/internal/ors"
)

// stateKey carries the per-scenario state through the godog context.
type stateKey struct{}

// scenarioState is constructed fresh for every scenario and never shared.
type scenarioState struct {
	deps   *Deps
	device string

	session *browser.Session
	page    *maps.Page

	apiResult *geojson.FeatureCollection
}

func stateFrom(ctx context.Context) (*scenarioState, error) {
	st, ok := ctx.Value(stateKey{}).(*scenarioState)
	if !ok {
		return nil, fmt.Errorf("scenario state missing from context")
	}
	return st, nil
}

// openPageFrom additionally requires that the planner was opened; a feature
// file skipping the opening Given gets a descriptive failure, not a panic.
func openPageFrom(ctx context.Context) (*scenarioState, error) {
	st, err := stateFrom(ctx)
	if err != nil {
		return nil, err
	}
	if st.page == nil {
		return nil, fmt.Errorf("route planner is not open: the scenario is missing the %q step", "the route planner is open")
	}
	return st, nil
}

// deviceFromTags maps scenario tags onto a device preset name.
func deviceFromTags(sc *godog.Scenario) string {
	for _, tag := range sc.Tags {
		switch tag.Name {
		case "@phone", "@mobile":
			return "phone"
		case "@tablet":
			return "tablet"
		case "@desktop":
			return "desktop"
		}
	}
	return ""
}

func (r *Runner) initializeScenario(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, scenario *godog.Scenario) (context.Context, error) {
		st := &scenarioState{
			deps:   r.deps,
			device: deviceFromTags(scenario),
		}
		r.logger.Debug("Scenario starting",
			zap.String("scenario", scenario.Name),
			zap.String("device", st.device),
		)
		return context.WithValue(ctx, stateKey{}, st), nil
	})

	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		if st, stErr := stateFrom(ctx); stErr == nil && st.session != nil {
			_ = st.session.Close(context.Background())
		}
		return ctx, nil
	})

	// Browser path.
	sc.Step(`^the route planner is open$`, r.theRoutePlannerIsOpen)
	sc.Step(`^I pick a start point on the map$`, r.iPickAStartPoint)
	sc.Step(`^I pick an end point on the map$`, r.iPickAnEndPoint)
	sc.Step(`^I pick the same point again$`, r.iPickTheSamePointAgain)
	sc.Step(`^a route is calculated$`, r.aRouteIsCalculated)
	sc.Step(`^the route distance is positive$`, r.theRouteDistanceIsPositive)
	sc.Step(`^the route duration is positive$`, r.theRouteDurationIsPositive)
	sc.Step(`^the route geometry has at least (\d+) points$`, r.theRouteGeometryHasAtLeast)
	sc.Step(`^the route distance is below (\d+) meters$`, r.theRouteDistanceIsBelow)

	// Direct API path.
	sc.Step(`^I request "([^"]*)" directions from (-?\d+\.?\d*),(-?\d+\.?\d*) to (-?\d+\.?\d*),(-?\d+\.?\d*)$`, r.iRequestDirections)
	sc.Step(`^the response contains a valid route$`, r.theResponseContainsAValidRoute)
}

func (r *Runner) theRoutePlannerIsOpen(ctx context.Context) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	mgr, err := st.deps.BrowserManager()
	if err != nil {
		return err
	}
	session, err := mgr.NewSession(ctx, st.deps.Cfg.DeviceByTag(st.device))
	if err != nil {
		return err
	}
	st.session = session
	st.page = maps.NewPage(session, maps.ConfigFrom(st.deps.Cfg), st.deps.Logger)
	return st.page.Navigate(ctx)
}

func (r *Runner) iPickAStartPoint(ctx context.Context) error {
	st, err := openPageFrom(ctx)
	if err != nil {
		return err
	}
	return st.page.SelectStart(ctx)
}

func (r *Runner) iPickAnEndPoint(ctx context.Context) error {
	st, err := openPageFrom(ctx)
	if err != nil {
		return err
	}
	return st.page.CompleteInteraction(ctx)
}

func (r *Runner) iPickTheSamePointAgain(ctx context.Context) error {
	st, err := openPageFrom(ctx)
	if err != nil {
		return err
	}
	return st.page.CompleteInteractionAtStart(ctx)
}

func (r *Runner) aRouteIsCalculated(ctx context.Context) error {
	st, err := openPageFrom(ctx)
	if err != nil {
		return err
	}
	if !st.page.HasRoute() {
		return fmt.Errorf("no route was captured")
	}
	return nil
}

func (r *Runner) theRouteDistanceIsPositive(ctx context.Context) error {
	st, err := openPageFrom(ctx)
	if err != nil {
		return err
	}
	d, err := st.page.Distance()
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("route distance is %f, want > 0", d)
	}
	return nil
}

func (r *Runner) theRouteDurationIsPositive(ctx context.Context) error {
	st, err := openPageFrom(ctx)
	if err != nil {
		return err
	}
	d, err := st.page.Duration()
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("route duration is %f, want > 0", d)
	}
	return nil
}

func (r *Runner) theRouteGeometryHasAtLeast(ctx context.Context, minPoints int) error {
	st, err := openPageFrom(ctx)
	if err != nil {
		return err
	}
	pts, err := st.page.Coordinates()
	if err != nil {
		return err
	}
	if len(pts) < minPoints {
		return fmt.Errorf("route geometry has %d points, want at least %d", len(pts), minPoints)
	}
	return nil
}

func (r *Runner) theRouteDistanceIsBelow(ctx context.Context, maxMeters int) error {
	st, err := openPageFrom(ctx)
	if err != nil {
		return err
	}
	d, err := st.page.Distance()
	if err != nil {
		return err
	}
	if d >= float64(maxMeters) {
		return fmt.Errorf("route distance is %f m, want below %d m", d, maxMeters)
	}
	return nil
}

func (r *Runner) iRequestDirections(ctx context.Context, profile, startLon, startLat, endLon, endLat string) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	p, err := ors.ParseProfile(profile)
	if err != nil {
		return err
	}
	start, err := parsePoint(startLon, startLat)
	if err != nil {
		return err
	}
	end, err := parsePoint(endLon, endLat)
	if err != nil {
		return err
	}
	fc, err := st.deps.API.Directions(ctx, p, start, end)
	if err != nil {
		return err
	}
	st.apiResult = fc
	return nil
}

func (r *Runner) theResponseContainsAValidRoute(ctx context.Context) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	if st.apiResult == nil {
		return fmt.Errorf("no directions response was received")
	}
	return ors.ValidateRoute(st.apiResult)
}

func parsePoint(lon, lat string) (geojson.Point, error) {
	lonF, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return geojson.Point{}, fmt.Errorf("invalid longitude %q: %w", lon, err)
	}
	latF, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return geojson.Point{}, fmt.Errorf("invalid latitude %q: %w", lat, err)
	}
	return geojson.Point{Lon: lonF, Lat: latF}, nil
}
