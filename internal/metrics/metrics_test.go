package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
)

func TestRecordRequestAggregates(t *testing.T) {
	m := New()

	for i := 0; i < 5; i++ {
		m.RecordRequest("GET", "/", "200", 10*time.Millisecond)
	}
	m.RecordRequest("POST", "/account/login", "302", 20*time.Millisecond)

	snap, err := m.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if snap.RequestCount != 6 {
		t.Errorf("expected 6 requests, got %d", snap.RequestCount)
	}
	if snap.DurationCount != 6 {
		t.Errorf("expected 6 duration samples, got %d", snap.DurationCount)
	}
	if snap.DurationSumSecs <= 0 {
		t.Errorf("expected positive duration sum, got %f", snap.DurationSumSecs)
	}
}

func TestGatherEmpty(t *testing.T) {
	snap, err := New().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if snap.RequestCount != 0 || snap.DurationCount != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestHandlerExposesInstruments(t *testing.T) {
	m := New()
	m.RecordRequest("GET", "/devices", "200", 5*time.Millisecond)

	resp := httptest.NewRecorder()
	m.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from scrape endpoint, got %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, "orchestrate_http_requests_total") {
		t.Error("scrape output missing request counter")
	}
	if !strings.Contains(body, "orchestrate_http_request_duration_seconds") {
		t.Error("scrape output missing duration histogram")
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordRequest("GET", "/", "200", time.Millisecond)

	snap, err := b.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if snap.RequestCount != 0 {
		t.Fatalf("expected isolated registries, got %d requests on b", snap.RequestCount)
	}
}

func TestFlushEmitsAggregateLine(t *testing.T) {
	m := New()
	for i := 0; i < 3; i++ {
		m.RecordRequest("GET", "/", "200", 10*time.Millisecond)
	}

	var out bytes.Buffer
	f := NewFlusher(m, 15*time.Second, logging.NewWithOutput("metrics", "info", "json", &out))
	f.flush()

	var entry map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &entry); err != nil {
		t.Fatalf("flush emitted no parseable line: %v (output %q)", err, out.String())
	}
	if entry["msg"] != "metrics output" {
		t.Errorf("expected metrics output line, got %v", entry["msg"])
	}
	// The line must appear at the default logger level, not below it.
	if entry["level"] != "info" {
		t.Errorf("expected info level, got %v", entry["level"])
	}
	if entry["requests_total"] != float64(3) {
		t.Errorf("expected 3 requests flushed, got %v", entry["requests_total"])
	}
	if entry["duration_count"] != float64(3) {
		t.Errorf("expected 3 duration samples flushed, got %v", entry["duration_count"])
	}
	if avg, ok := entry["duration_avg_ms"].(float64); !ok || avg <= 0 {
		t.Errorf("expected positive average duration, got %v", entry["duration_avg_ms"])
	}
}

// syncBuffer lets the test poll output the flusher goroutine is writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFlusherEmitsOnInterval(t *testing.T) {
	m := New()
	m.RecordRequest("GET", "/", "200", time.Millisecond)

	out := &syncBuffer{}
	f := NewFlusher(m, 10*time.Millisecond, logging.NewWithOutput("metrics", "info", "json", out))

	ctx := context.Background()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "metrics output") {
		if time.Now().After(deadline) {
			t.Fatal("no metrics line emitted within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := f.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestFlusherLifecycle(t *testing.T) {
	f := NewFlusher(New(), 10*time.Millisecond, nil)
	ctx := context.Background()

	if err := f.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Second start is a no-op, not an error.
	if err := f.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := f.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := f.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
