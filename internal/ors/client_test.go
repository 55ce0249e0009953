package ors

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vmurashev365/hora-openrouteservice/internal/geojson"
)

const routeFixture = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {"summary": {"distance": 5420, "duration": 380}},
		"geometry": {"type": "LineString", "coordinates": [[8.681495, 49.41461], [8.685, 49.417], [8.687872, 49.420318]]}
	}]
}`

func TestParseProfile(t *testing.T) {
	for _, p := range Profiles {
		got, err := ParseProfile(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParseProfile("rocket-ship")
	assert.Error(t, err)
}

func TestDirectionsRequestContract(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody directionsRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.Equal(t, http.MethodPost, r.Method)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(routeFixture))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Key: "test-key"}, zaptest.NewLogger(t))

	fc, err := c.Directions(context.Background(), ProfileDriving,
		geojson.Point{Lon: 8.681495, Lat: 49.41461},
		geojson.Point{Lon: 8.687872, Lat: 49.420318},
	)
	require.NoError(t, err)

	assert.Equal(t, "/v2/directions/driving-car/geojson", gotPath)
	assert.Equal(t, "test-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	require.Len(t, gotBody.Coordinates, 2)
	assert.Equal(t, [2]float64{8.681495, 49.41461}, gotBody.Coordinates[0])
	assert.Equal(t, [2]float64{8.687872, 49.420318}, gotBody.Coordinates[1])

	require.NoError(t, ValidateRoute(fc))
}

func TestDirectionsEveryProfileHitsItsEndpoint(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(routeFixture))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	for _, p := range Profiles {
		_, err := c.Directions(context.Background(), p,
			geojson.Point{Lon: 8.68, Lat: 49.41}, geojson.Point{Lon: 8.69, Lat: 49.42})
		require.NoError(t, err, p)
	}

	assert.Equal(t, []string{
		"/v2/directions/driving-car/geojson",
		"/v2/directions/driving-hgv/geojson",
		"/v2/directions/cycling-regular/geojson",
		"/v2/directions/foot-walking/geojson",
	}, paths)
}

func TestDirectionsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "Access to this API has been disallowed"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	_, err := c.Directions(context.Background(), ProfileCycling,
		geojson.Point{Lon: 8.68, Lat: 49.41}, geojson.Point{Lon: 8.69, Lat: 49.42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "disallowed")
}

func TestDirectionsEmptyFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type": "FeatureCollection", "features": []}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	_, err := c.Directions(context.Background(), ProfileWalking,
		geojson.Point{Lon: 8.68, Lat: 49.41}, geojson.Point{Lon: 8.69, Lat: 49.42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no features")
}

func TestDirectionsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Directions(ctx, ProfileDriving,
		geojson.Point{Lon: 8.68, Lat: 49.41}, geojson.Point{Lon: 8.69, Lat: 49.42})
	assert.Error(t, err)
}

func TestValidateRoute(t *testing.T) {
	valid := func() *geojson.FeatureCollection {
		fc, err := geojson.Decode([]byte(routeFixture))
		require.NoError(t, err)
		return fc
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateRoute(valid()))
	})

	t.Run("nil collection", func(t *testing.T) {
		assert.Error(t, ValidateRoute(nil))
	})

	t.Run("missing summary", func(t *testing.T) {
		fc := valid()
		fc.Features[0].Properties.Summary = nil
		assert.ErrorContains(t, ValidateRoute(fc), "summary")
	})

	t.Run("zero distance", func(t *testing.T) {
		fc := valid()
		fc.Features[0].Properties.Summary.Distance = 0
		assert.ErrorContains(t, ValidateRoute(fc), "distance")
	})

	t.Run("zero duration", func(t *testing.T) {
		fc := valid()
		fc.Features[0].Properties.Summary.Duration = 0
		assert.ErrorContains(t, ValidateRoute(fc), "duration")
	})

	t.Run("degenerate geometry", func(t *testing.T) {
		fc := valid()
		fc.Features[0].Geometry.Coordinates = fc.Features[0].Geometry.Coordinates[:1]
		assert.ErrorContains(t, ValidateRoute(fc), "geometry")
	})
}
