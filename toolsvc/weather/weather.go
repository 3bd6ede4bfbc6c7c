// Package weather is the weather tool service. Lookups are cached by city;
// when the underlying source fails, a stale cached report is served rather
// than failing the call.
package weather

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolchat/events"
	"github.com/effective-security/toolchat/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolchat", "weather")

// retentionFactor keeps entries in the cache past their fresh window so they
// can be served stale when the source is down.
const retentionFactor = 6

// Report is the tool payload.
type Report struct {
	City         string    `json:"city"`
	TemperatureC float64   `json:"temperature_c"`
	Conditions   string    `json:"conditions"`
	WindKph      float64   `json:"wind_kph"`
	ObservedAt   time.Time `json:"observed_at"`
	// Stale marks a report served from an expired cache entry because the
	// source was unavailable.
	Stale bool `json:"stale,omitempty"`
}

// Source produces a current report for a city.
type Source interface {
	Fetch(ctx context.Context, city string) (*Report, error)
}

type invokeRequest struct {
	Args struct {
		City string `json:"city"`
	} `json:"args"`
}

// Handler serves POST {args:{city}} -> Report under the tool contract.
type Handler struct {
	cache  Cache
	source Source
	ttl    time.Duration
	sink   events.Sink
	now    func() time.Time
}

// NewHandler wires the service. sink may be nil.
func NewHandler(cache Cache, source Source, ttl time.Duration, sink events.Sink) *Handler {
	if sink == nil {
		sink = events.NewNoop()
	}
	return &Handler{
		cache:  cache,
		source: source,
		ttl:    ttl,
		sink:   sink,
		now:    time.Now,
	}
}

// RetentionTTL returns the cache entry lifetime matching a fresh window,
// sized so stale entries survive long enough to cover source outages.
func RetentionTTL(ttl time.Duration) time.Duration {
	return ttl * retentionFactor
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	city := strings.TrimSpace(req.Args.City)
	if city == "" {
		http.Error(w, "city is required", http.StatusBadRequest)
		return
	}

	report, err := h.lookup(r.Context(), city)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

func (h *Handler) lookup(ctx context.Context, city string) (*Report, error) {
	cached, ok, err := h.cache.Get(ctx, city)
	if err != nil {
		// a broken cache degrades to a miss
		logger.ContextKV(ctx, xlog.WARNING, "status", "cache_get_failed", "city", city, "err", err.Error())
		cached, ok = nil, false
	}

	if ok && h.now().Sub(cached.ObservedAt) <= h.ttl {
		metricskey.StatsCacheHits.IncrCounter(1)
		h.sink.Emit(ctx, events.Event{
			Type:    events.TypeCacheHit,
			Tool:    "weather.current",
			Payload: map[string]any{"city": city},
		})
		return cached, nil
	}
	metricskey.StatsCacheMisses.IncrCounter(1)

	report, err := h.source.Fetch(ctx, city)
	if err != nil {
		if ok {
			// serve the expired entry rather than failing the call
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "serving_stale",
				"city", city,
				"observed_at", cached.ObservedAt,
				"err", err.Error(),
			)
			stale := *cached
			stale.Stale = true
			return &stale, nil
		}
		return nil, errors.WithMessagef(err, "weather source failed for %s", city)
	}

	if err := h.cache.Set(ctx, city, report); err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "status", "cache_set_failed", "city", city, "err", err.Error())
	}
	return report, nil
}

// UpstreamSource fetches reports from a weather HTTP API returning Report
// JSON for GET <url>?city=<city>.
type UpstreamSource struct {
	URL        string
	HTTPClient *http.Client
}

func NewUpstreamSource(rawURL string) *UpstreamSource {
	return &UpstreamSource{
		URL:        rawURL,
		HTTPClient: http.DefaultClient,
	}
}

func (s *UpstreamSource) Fetch(ctx context.Context, city string) (*Report, error) {
	u := s.URL + "?city=" + url.QueryEscape(city)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create upstream request")
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "weather upstream unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("weather upstream returned status %d", resp.StatusCode)
	}
	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, errors.Wrap(err, "failed to decode upstream report")
	}
	return &report, nil
}

var conditions = []string{"clear", "partly cloudy", "overcast", "light rain", "rain", "snow", "fog", "windy"}

// SynthSource derives a deterministic pseudo-report from the city name and
// the current hour, keeping the service self-contained when no upstream API
// is configured.
type SynthSource struct {
	now func() time.Time
}

func NewSynthSource() *SynthSource {
	return &SynthSource{now: time.Now}
}

func (s *SynthSource) Fetch(_ context.Context, city string) (*Report, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(city))))
	now := s.now()
	_, _ = h.Write([]byte(now.UTC().Format("2006010215")))
	seed := h.Sum64()

	return &Report{
		City:         city,
		TemperatureC: float64(int64(seed%551))/10.0 - 20.0, // -20.0 .. 35.0
		Conditions:   conditions[seed/7%uint64(len(conditions))],
		WindKph:      float64(seed / 13 % 80),
		ObservedAt:   now.UTC().Truncate(time.Second),
	}, nil
}
