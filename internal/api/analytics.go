package api

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/crowdwatch/internal/model"
)

func (s *Server) handleAnalyticsRealtime(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	sample, err := s.deps.Store.Analytics.Latest(r.Context(), cameraID)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sample)
}

// historyBucket is one aggregated interval of the /history response.
type historyBucket struct {
	BucketStart time.Time `json:"bucket_start"`
	PeopleCount float64   `json:"avg_people_count"`
	Density     float64   `json:"avg_density"`
	RiskScore   float64   `json:"avg_risk_score"`
	Samples     int       `json:"samples"`
}

// handleAnalyticsHistory returns samples in [start_time, end_time] bucketed
// into fixed-width intervals (interval query param, default 60s), since
// returning every raw per-frame sample over a long window would be both
// noisy and enormous.
func (s *Server) handleAnalyticsHistory(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	from, to, ok := parseTimeRange(w, r)
	if !ok {
		return
	}
	interval := time.Duration(atoiDefault(r.URL.Query().Get("interval"), 60)) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	samples, err := s.deps.Store.Analytics.History(r.Context(), cameraID, from, to)
	if err != nil {
		respondStoreErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"camera_id": cameraID,
		"interval_s": int(interval.Seconds()),
		"buckets":   bucketSamples(samples, from, interval),
	})
}

func bucketSamples(samples []model.AnalyticsSample, from time.Time, interval time.Duration) []historyBucket {
	index := make(map[int]*historyBucket)
	var order []int
	for _, smp := range samples {
		offset := int(smp.Timestamp.Sub(from) / interval)
		b, ok := index[offset]
		if !ok {
			b = &historyBucket{BucketStart: from.Add(time.Duration(offset) * interval)}
			index[offset] = b
			order = append(order, offset)
		}
		b.PeopleCount += float64(smp.PeopleCount)
		b.Density += smp.Density
		b.RiskScore += smp.RiskScore
		b.Samples++
	}
	out := make([]historyBucket, 0, len(order))
	for _, offset := range order {
		b := index[offset]
		if b.Samples > 0 {
			b.PeopleCount /= float64(b.Samples)
			b.Density /= float64(b.Samples)
			b.RiskScore /= float64(b.Samples)
		}
		out = append(out, *b)
	}
	return out
}

// handleAnalyticsHeatmap renders a temporal density heatmap (density over
// the requested duration, one column per sample, bluer = sparser and
// redder = denser) as a base64-encoded PNG, since
// the pipeline keeps no per-pixel occupancy history to render a spatial
// heatmap from.
func (s *Server) handleAnalyticsHeatmap(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	durationS := atoiDefault(r.URL.Query().Get("duration"), 3600)
	to := time.Now()
	from := to.Add(-time.Duration(durationS) * time.Second)

	samples, err := s.deps.Store.Analytics.History(r.Context(), cameraID, from, to)
	if err != nil {
		respondStoreErr(w, err)
		return
	}

	imgBytes, err := renderDensityStrip(samples)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"camera_id":        cameraID,
		"duration_s":       durationS,
		"image_png_base64": base64.StdEncoding.EncodeToString(imgBytes),
	})
}

const heatmapHeight = 64

func renderDensityStrip(samples []model.AnalyticsSample) ([]byte, error) {
	width := len(samples)
	if width == 0 {
		width = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, width, heatmapHeight))
	for x, smp := range samples {
		c := densityColor(smp.Density)
		for y := 0; y < heatmapHeight; y++ {
			img.Set(x, y, c)
		}
	}
	if width == 1 && len(samples) == 0 {
		for y := 0; y < heatmapHeight; y++ {
			img.Set(0, y, color.RGBA{0, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// densityColor maps [0,1] density to a blue (cool) -> red (hot) gradient.
func densityColor(density float64) color.RGBA {
	if density < 0 {
		density = 0
	}
	if density > 1 {
		density = 1
	}
	return color.RGBA{
		R: uint8(255 * density),
		G: uint8(64),
		B: uint8(255 * (1 - density)),
		A: 255,
	}
}

func (s *Server) handleEntryExit(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	limit := atoiDefault(r.URL.Query().Get("limit"), 50)

	events, err := s.deps.Store.Events.ListRecentByCamera(r.Context(), cameraID, limit)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	entries, exits := 0, 0
	for _, ev := range events {
		if ev.Kind == model.EventEntry {
			entries++
		} else {
			exits++
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"camera_id":   cameraID,
		"entry_count": entries,
		"exit_count":  exits,
		"events":      events,
	})
}

// parseTimeRange reads start_time/end_time RFC3339 query params, defaulting
// to the last hour, and writes a 400 response (returning ok=false) on a
// malformed value.
func parseTimeRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	to = time.Now()
	from = to.Add(-time.Hour)

	if v := r.URL.Query().Get("start_time"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid start_time: "+err.Error())
			return from, to, false
		}
		from = parsed
	}
	if v := r.URL.Query().Get("end_time"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid end_time: "+err.Error())
			return from, to, false
		}
		to = parsed
	}
	return from, to, true
}
