package weather_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolchat/events"
	"github.com/effective-security/toolchat/toolsvc/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySource struct {
	mu      sync.Mutex
	fail    bool
	fetches int
	report  weather.Report
}

func (s *flakySource) Fetch(_ context.Context, city string) (*weather.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fail {
		return nil, errors.New("upstream is down")
	}
	r := s.report
	r.City = city
	return &r, nil
}

func (s *flakySource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

type recordingSink struct {
	mu   sync.Mutex
	seen []events.Event
}

func (s *recordingSink) Emit(_ context.Context, ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, ev)
}

func (s *recordingSink) types() []events.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Type
	for _, ev := range s.seen {
		out = append(out, ev.Type)
	}
	return out
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func Test_Handler_CacheHitCounting(t *testing.T) {
	ttl := time.Minute
	cache := weather.NewMemoryCache(weather.RetentionTTL(ttl))
	source := &flakySource{report: weather.Report{TemperatureC: 4.5, Conditions: "snow", ObservedAt: time.Now().UTC()}}
	sink := &recordingSink{}
	srv := httptest.NewServer(weather.NewHandler(cache, source, ttl, sink))
	defer srv.Close()

	// first call fetches and fills the cache
	resp, body := post(t, srv.URL, `{"args":{"city":"Oslo"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report weather.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, "Oslo", report.City)
	assert.Equal(t, 1, source.count())

	// second call is served from cache
	resp, _ = post(t, srv.URL, `{"args":{"city":"Oslo"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, source.count())

	hits, err := cache.Hits(context.Background(), "oslo")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits)
	assert.Contains(t, sink.types(), events.TypeCacheHit)
}

func Test_Handler_ServesStaleOnSourceFailure(t *testing.T) {
	ttl := time.Nanosecond // everything cached is immediately stale
	cache := weather.NewMemoryCache(weather.RetentionTTL(time.Minute))
	source := &flakySource{report: weather.Report{Conditions: "clear", ObservedAt: time.Now().UTC().Add(-time.Hour)}}
	srv := httptest.NewServer(weather.NewHandler(cache, source, ttl, nil))
	defer srv.Close()

	resp, _ := post(t, srv.URL, `{"args":{"city":"Bergen"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	source.mu.Lock()
	source.fail = true
	source.mu.Unlock()

	resp, body := post(t, srv.URL, `{"args":{"city":"Bergen"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report weather.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.True(t, report.Stale)
	assert.Equal(t, "clear", report.Conditions)
}

func Test_Handler_FailureWithEmptyCache(t *testing.T) {
	source := &flakySource{fail: true}
	srv := httptest.NewServer(weather.NewHandler(weather.NewMemoryCache(time.Minute), source, time.Minute, nil))
	defer srv.Close()

	resp, body := post(t, srv.URL, `{"args":{"city":"Atlantis"}}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "upstream is down")
}

func Test_Handler_Validation(t *testing.T) {
	srv := httptest.NewServer(weather.NewHandler(weather.NewMemoryCache(time.Minute), weather.NewSynthSource(), time.Minute, nil))
	defer srv.Close()

	resp, _ := post(t, srv.URL, `{"args":{}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv.URL, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func Test_SynthSource_Deterministic(t *testing.T) {
	src := weather.NewSynthSource()
	a, err := src.Fetch(context.Background(), "Oslo")
	require.NoError(t, err)
	b, err := src.Fetch(context.Background(), "Oslo")
	require.NoError(t, err)
	assert.Equal(t, a.TemperatureC, b.TemperatureC)
	assert.Equal(t, a.Conditions, b.Conditions)

	assert.GreaterOrEqual(t, a.TemperatureC, -20.0)
	assert.LessOrEqual(t, a.TemperatureC, 35.1)
	assert.NotEmpty(t, a.Conditions)
}

func Test_UpstreamSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Oslo", r.URL.Query().Get("city"))
		_ = json.NewEncoder(w).Encode(weather.Report{City: "Oslo", Conditions: "fog"})
	}))
	defer upstream.Close()

	report, err := weather.NewUpstreamSource(upstream.URL).Fetch(context.Background(), "Oslo")
	require.NoError(t, err)
	assert.Equal(t, "fog", report.Conditions)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	_, err = weather.NewUpstreamSource(bad.URL).Fetch(context.Background(), "Oslo")
	assert.Error(t, err)
}
