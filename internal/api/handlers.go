package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/choropleth"
	"github.com/sells-group/choropleth/internal/render"
)

// RegionResponse is the tooltip payload for one region.
type RegionResponse struct {
	RegionKey string   `json:"region_key"`
	Value     *float64 `json:"value"`
	Bucket    int      `json:"bucket"`
	Low       *float64 `json:"low,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Color     string   `json:"color"`
	Name      string   `json:"name,omitempty"`
	Group     string   `json:"group,omitempty"`
	Tooltip   string   `json:"tooltip"`
}

func regionResponse(r choropleth.Region) RegionResponse {
	resp := RegionResponse{
		RegionKey: r.RegionKey,
		Bucket:    r.Bucket,
		Color:     r.Color,
		Tooltip:   choropleth.Tooltip(r),
	}
	if r.HasValue {
		v, lo, hi := r.Value, r.Low, r.High
		resp.Value, resp.Low, resp.High = &v, &lo, &hi
	}
	if r.Stat != nil {
		resp.Name = r.Stat.DisplayName
		resp.Group = r.Stat.GroupName
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	m, _, builtAt := s.current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"regions":  len(m.Regions),
		"matched":  m.Join.Matched(),
		"built_at": builtAt.Format(time.RFC3339),
	})
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	_, data, _ := s.current()
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Render-ID", uuid.NewString())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleLegend(w http.ResponseWriter, _ *http.Request) {
	m, _, _ := s.current()
	writeJSON(w, http.StatusOK, render.Legend(m))
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	m, _, _ := s.current()
	key := chi.URLParam(r, "key")
	region, ok := m.Lookup(key)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown region "+key)
		return
	}
	writeJSON(w, http.StatusOK, regionResponse(region))
}

func (s *Server) handleSVG(w http.ResponseWriter, _ *http.Request) {
	m, _, _ := s.current()
	var buf bytes.Buffer
	if err := render.SVG(&buf, m, s.opts.SVG); err != nil {
		zap.L().Error("api: render svg", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("X-Render-ID", uuid.NewString())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.opts.Build == nil {
		writeError(w, http.StatusNotImplemented, "reload not configured")
		return
	}
	m, err := s.opts.Build(r.Context())
	if err != nil {
		zap.L().Error("api: reload", zap.Error(err))
		writeError(w, http.StatusBadGateway, "reload failed")
		return
	}
	if err := s.setMap(m); err != nil {
		zap.L().Error("api: reload encode", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	zap.L().Info("api: map reloaded", zap.Int("regions", len(m.Regions)))
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "regions": len(m.Regions)})
}
