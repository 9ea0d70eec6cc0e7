package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/choropleth/internal/choropleth"
	"github.com/sells-group/choropleth/internal/render"
)

func square(x, y float64) geom.T {
	return geom.NewPolygonFlat(geom.XY, []float64{x, y, x + 1, y, x + 1, y + 1, x, y + 1, x, y}, []int{10})
}

func buildMap(t *testing.T, values ...float64) *choropleth.Map {
	t.Helper()
	keys := []string{"01001", "01003", "01005"}
	var stats []choropleth.StatRecord
	for i, v := range values {
		stats = append(stats, choropleth.StatRecord{RegionKey: keys[i], Value: v, DisplayName: "County " + keys[i], GroupName: "AL"})
	}
	geoms := []choropleth.GeometryRecord{
		{RegionKey: "01001", Geometry: square(0, 0)},
		{RegionKey: "01003", Geometry: square(1, 0)},
		{RegionKey: "01005", Geometry: square(2, 0)},
		{RegionKey: "02013", Geometry: square(3, 0)},
	}
	m, err := choropleth.Build(stats, geoms, choropleth.DefaultOptions())
	require.NoError(t, err)
	return m
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.SVG.Width == 0 {
		opts.SVG = render.SVGOptions{Width: 200, Height: 120, StrokeColor: "#fff", StrokeWidth: 0.25, Legend: true}
	}
	s, err := NewServer(buildMap(t, 10, 50, 90), opts)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(t, Options{}), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 4.0, body["regions"])
	assert.Equal(t, 3.0, body["matched"])
}

func TestMap(t *testing.T) {
	rec := get(t, newTestServer(t, Options{}), "/api/map")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	_, err := uuid.Parse(rec.Header().Get("X-Render-ID"))
	assert.NoError(t, err)

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 4)
}

func TestLegendEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, Options{}), "/api/legend")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc render.LegendDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Len(t, doc.Buckets, 9)
	assert.Len(t, doc.Ticks, 8)
	assert.Equal(t, "19%", doc.TickLabels[0])
	assert.Equal(t, 50.0, doc.Summary.Median)
}

func TestRegion(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := get(t, s, "/api/regions/01005")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RegionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "01005", resp.RegionKey)
	require.NotNil(t, resp.Value)
	assert.Equal(t, 90.0, *resp.Value)
	assert.Equal(t, 8, resp.Bucket)
	assert.Equal(t, choropleth.BuGn9[8], resp.Color)
	assert.Equal(t, "County 01005, AL: 90%", resp.Tooltip)

	rec = get(t, s, "/api/regions/02013")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = RegionResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Value)
	assert.Equal(t, choropleth.Unclassified, resp.Bucket)
	assert.Equal(t, "02013: no data", resp.Tooltip)

	rec = get(t, s, "/api/regions/99999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown region")
}

func TestSVGEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, Options{}), "/map.svg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Body.String(), "<svg"))
}

func TestSVGEndpoint_RenderError(t *testing.T) {
	s := newTestServer(t, Options{SVG: render.SVGOptions{Width: 100, Height: 100, StrokeWidth: 1, StrokeColor: "bogus"}})
	rec := get(t, s, "/map.svg")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReload(t *testing.T) {
	calls := 0
	s := newTestServer(t, Options{Build: func(ctx context.Context) (*choropleth.Map, error) {
		calls++
		return buildMap(t, 1, 2), nil
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/reload", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)

	rec = get(t, s, "/api/regions/01005")
	var resp RegionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Value, "01005 has no statistic after reload")
}

func TestHealth_ReportsReloadedSnapshot(t *testing.T) {
	s := newTestServer(t, Options{Build: func(ctx context.Context) (*choropleth.Map, error) {
		return buildMap(t, 1, 2), nil
	}})
	_, _, before := s.current()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	m, data, after := s.current()
	assert.Equal(t, 2, m.Join.Matched())
	assert.NotEmpty(t, data)
	assert.False(t, after.Before(before))

	rec = get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2.0, body["matched"])
	builtAt, err := time.Parse(time.RFC3339, body["built_at"].(string))
	require.NoError(t, err)
	assert.True(t, after.Truncate(time.Second).Equal(builtAt), "built_at %s, want %s", builtAt, after)
}

func TestReload_Errors(t *testing.T) {
	s := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/reload", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	s = newTestServer(t, Options{Build: func(context.Context) (*choropleth.Map, error) {
		return nil, errors.New("source down")
	}})
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = get(t, s, "/api/regions/01005")
	assert.Equal(t, http.StatusOK, rec.Code, "previous map still served")
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, Options{AllowedOrigins: []string{"https://maps.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/api/legend", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://maps.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/legend", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServer_NilMap(t *testing.T) {
	_, err := NewServer(nil, Options{})
	assert.Error(t, err)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s := newTestServer(t, Options{Port: 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.ListenAndServe(ctx))
}
