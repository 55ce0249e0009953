package runner

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cucumber/godog"
	messages "github.com/cucumber/messages/go/v21"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vmurashev365/hora-openrouteservice/internal/config"
)

func TestCombineTags(t *testing.T) {
	cases := []struct {
		name  string
		parts []string
		want  string
	}{
		{"empty", nil, ""},
		{"single", []string{"@smoke"}, "@smoke"},
		{"two", []string{"@smoke", "@desktop"}, "@smoke && @desktop"},
		{"skips empties", []string{"", "@api", "  ", "@smoke"}, "@api && @smoke"},
		{"trims whitespace", []string{" @browser "}, "@browser"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CombineTags(tc.parts...))
		})
	}
}

func scenarioWithTags(names ...string) *godog.Scenario {
	sc := &godog.Scenario{}
	for _, n := range names {
		sc.Tags = append(sc.Tags, &messages.PickleTag{Name: n})
	}
	return sc
}

func TestDeviceFromTags(t *testing.T) {
	assert.Equal(t, "phone", deviceFromTags(scenarioWithTags("@smoke", "@phone")))
	assert.Equal(t, "phone", deviceFromTags(scenarioWithTags("@mobile")))
	assert.Equal(t, "tablet", deviceFromTags(scenarioWithTags("@tablet")))
	assert.Equal(t, "desktop", deviceFromTags(scenarioWithTags("@desktop", "@edge")))
	assert.Equal(t, "", deviceFromTags(scenarioWithTags("@api")))
	assert.Equal(t, "", deviceFromTags(scenarioWithTags()))
}

func TestParsePoint(t *testing.T) {
	pt, err := parsePoint("8.681495", "49.41461")
	require.NoError(t, err)
	assert.Equal(t, 8.681495, pt.Lon)
	assert.Equal(t, 49.41461, pt.Lat)

	_, err = parsePoint("east", "49.4")
	assert.ErrorContains(t, err, "longitude")

	_, err = parsePoint("8.68", "north")
	assert.ErrorContains(t, err, "latitude")
}

const apiFeature = `Feature: direct directions endpoint

  Scenario: valid driving route
    When I request "driving-car" directions from 8.681495,49.41461 to 8.687872,49.420318
    Then the response contains a valid route
`

// The API path runs end to end through godog without a browser.
func TestAPIScenarioThroughGodog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/directions/driving-car/geojson", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"type": "FeatureCollection",
			"features": [{
				"type": "Feature",
				"properties": {"summary": {"distance": 5420, "duration": 380}},
				"geometry": {"type": "LineString", "coordinates": [[8.681495, 49.41461], [8.687872, 49.420318]]}
			}]
		}`))
	}))
	defer srv.Close()

	cfg := &config.Config{
		API: config.APIConfig{BaseURL: srv.URL},
	}
	deps := NewDeps(context.Background(), cfg, zaptest.NewLogger(t))
	r := New(Options{Concurrency: 1}, deps)

	suite := godog.TestSuite{
		Name:                "api-path",
		ScenarioInitializer: r.initializeScenario,
		Options: &godog.Options{
			Format: "progress",
			Output: io.Discard,
			Strict: true,
			FeatureContents: []godog.Feature{
				{Name: "api.feature", Contents: []byte(apiFeature)},
			},
		},
	}

	assert.Equal(t, 0, suite.Run(), "scenario should pass against the stub endpoint")
}

func TestUnknownProfileFailsTheStep(t *testing.T) {
	cfg := &config.Config{API: config.APIConfig{BaseURL: "http://127.0.0.1:0"}}
	deps := NewDeps(context.Background(), cfg, zaptest.NewLogger(t))
	r := New(Options{}, deps)

	ctx := context.WithValue(context.Background(), stateKey{}, &scenarioState{deps: deps})
	err := r.iRequestDirections(ctx, "rocket-ship", "8.68", "49.41", "8.69", "49.42")
	assert.ErrorContains(t, err, "unsupported travel profile")
}

func TestValidRouteStepWithoutResponse(t *testing.T) {
	r := New(Options{}, NewDeps(context.Background(), &config.Config{}, zaptest.NewLogger(t)))
	ctx := context.WithValue(context.Background(), stateKey{}, &scenarioState{})
	err := r.theResponseContainsAValidRoute(ctx)
	assert.ErrorContains(t, err, "no directions response")
}

func TestStepsRequireScenarioState(t *testing.T) {
	r := New(Options{}, NewDeps(context.Background(), &config.Config{}, zaptest.NewLogger(t)))
	err := r.aRouteIsCalculated(context.Background())
	assert.ErrorContains(t, err, "scenario state missing")
}

// A scenario skipping the opening Given must fail the step, never panic.
func TestBrowserStepsRequireAnOpenPlanner(t *testing.T) {
	deps := NewDeps(context.Background(), &config.Config{}, zaptest.NewLogger(t))
	r := New(Options{}, deps)
	ctx := context.WithValue(context.Background(), stateKey{}, &scenarioState{deps: deps})

	steps := map[string]func(context.Context) error{
		"pick start":        r.iPickAStartPoint,
		"pick end":          r.iPickAnEndPoint,
		"pick same again":   r.iPickTheSamePointAgain,
		"route calculated":  r.aRouteIsCalculated,
		"distance positive": r.theRouteDistanceIsPositive,
		"duration positive": r.theRouteDurationIsPositive,
	}
	for name, step := range steps {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				err := step(ctx)
				assert.ErrorContains(t, err, "route planner is not open")
			})
		})
	}

	assert.ErrorContains(t, r.theRouteGeometryHasAtLeast(ctx, 2), "route planner is not open")
	assert.ErrorContains(t, r.theRouteDistanceIsBelow(ctx, 100), "route planner is not open")
}
