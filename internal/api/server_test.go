package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stream-anomaly-alerts/internal/config"
	"stream-anomaly-alerts/internal/storage"
)

type fakeProvider struct {
	samples   []storage.StreamSample
	anomalies []storage.StreamSample
	lastLimit int
}

func (f *fakeProvider) RecentSamples(limit int) []storage.StreamSample {
	f.lastLimit = limit
	return f.samples
}

func (f *fakeProvider) RecentAnomalies(limit int) []storage.StreamSample {
	f.lastLimit = limit
	return f.anomalies
}

func testSamples() []storage.StreamSample {
	score := 3.5
	return []storage.StreamSample{
		{TimeIndex: 2, Value: 25.0, ZScore: &score, IsAnomaly: true, CreatedAt: time.Now().UTC()},
		{TimeIndex: 1, Value: 10.0, CreatedAt: time.Now().UTC()},
	}
}

func newTestServer(provider SampleProvider) *Server {
	cfg := config.APIConfig{Enabled: true, Addr: "127.0.0.1:0"}
	return NewServer(cfg, provider, NewHub(8), nil, zerolog.Nop(), "test")
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeProvider{})
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected status %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	server := newTestServer(&fakeProvider{})
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] != "test" {
		t.Fatalf("unexpected version %v", body["version"])
	}
	if _, ok := body["subscribers"]; !ok {
		t.Fatal("status should report the subscriber count")
	}
}

func TestSamplesEndpoint(t *testing.T) {
	provider := &fakeProvider{samples: testSamples()}
	server := newTestServer(provider)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/samples?limit=25", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if provider.lastLimit != 25 {
		t.Fatalf("limit query should be forwarded, got %d", provider.lastLimit)
	}

	var body struct {
		Samples []storage.StreamSample `json:"samples"`
		Count   int                    `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || len(body.Samples) != 2 {
		t.Fatalf("expected 2 samples, got count=%d len=%d", body.Count, len(body.Samples))
	}
	if body.Samples[0].TimeIndex != 2 || !body.Samples[0].IsAnomaly {
		t.Fatalf("unexpected first sample: %+v", body.Samples[0])
	}
	if body.Samples[1].ZScore != nil {
		t.Fatal("fill-phase sample should serialize a null z-score")
	}
}

func TestSamplesEndpointDefaultLimit(t *testing.T) {
	provider := &fakeProvider{}
	server := newTestServer(provider)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/samples?limit=bogus", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if provider.lastLimit != defaultListLimit {
		t.Fatalf("invalid limit should fall back to %d, got %d", defaultListLimit, provider.lastLimit)
	}
}

func TestAnomaliesEndpoint(t *testing.T) {
	provider := &fakeProvider{anomalies: testSamples()[:1]}
	server := newTestServer(provider)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/anomalies", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Anomalies []storage.StreamSample `json:"anomalies"`
		Count     int                    `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || !body.Anomalies[0].IsAnomaly {
		t.Fatalf("unexpected anomalies payload: %+v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(&fakeProvider{})
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/samples", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub(4)
	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)

	sample := storage.StreamSample{TimeIndex: 7, Value: 12.5}
	hub.Publish(sample)

	select {
	case got := <-ch:
		if got.TimeIndex != 7 {
			t.Fatalf("unexpected sample %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the published sample")
	}
}

func TestHubDropsWhenSubscriberLagsBehind(t *testing.T) {
	hub := NewHub(1)
	id, _ := hub.Subscribe()
	defer hub.Unsubscribe(id)

	hub.Publish(storage.StreamSample{TimeIndex: 1})
	hub.Publish(storage.StreamSample{TimeIndex: 2})

	if hub.DropCount() != 1 {
		t.Fatalf("expected 1 dropped sample, got %d", hub.DropCount())
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(4)
	id, ch := hub.Subscribe()
	hub.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatal("unsubscribed channel should be closed")
	}
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}
