package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/thisisjab/logtable/engine"
	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/fault"
)

type recordingWriter struct {
	mu      sync.Mutex
	records []entity.LogRecord
}

func (w *recordingWriter) Write(r entity.LogRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, r)
}

type fixedStats struct{}

func (fixedStats) Stats() engine.Stats { return engine.Stats{Submitted: 5, Written: 4, DroppedBatches: 1} }
func (fixedStats) TableName() string   { return "AppLogs" }

func newTestServer(t *testing.T, cfg Config, svc Services) http.Handler {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "localhost:0"
	}
	s, err := NewServer(cfg, svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s.routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:4321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestHealthCheck(t *testing.T) {
	h := newTestServer(t, Config{}, Services{})

	rec, resp := do(t, h, http.MethodGet, "/api/healthcheck", "")
	if rec.Code != http.StatusOK || !resp.Success || resp.Message != "OK" {
		t.Fatalf("got %d %+v", rec.Code, resp)
	}
}

func TestIngestLogs(t *testing.T) {
	w := &recordingWriter{}
	h := newTestServer(t, Config{}, Services{Writer: w})

	body := `{"logs":[
		{"timestamp":"2024-05-01T12:00:00Z","level":"error","logger":"billing","message":"charge failed","invoice":"inv-7","amount":12.5},
		{"message":"no logger"}
	]}`
	rec, resp := do(t, h, http.MethodPost, "/api/logs", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Data["accepted"] != float64(2) {
		t.Fatalf("accepted = %v", resp.Data["accepted"])
	}

	if len(w.records) != 2 {
		t.Fatalf("writer got %d records", len(w.records))
	}
	first := w.records[0]
	if first.LoggerName != "billing" || first.Level != entity.LogLevelError || first.Message != "charge failed" {
		t.Fatalf("unexpected record %+v", first)
	}
	if len(first.Properties) != 2 || first.Properties[0].Name != "invoice" || first.Properties[1].Name != "amount" {
		t.Fatalf("properties = %+v", first.Properties)
	}
	if second := w.records[1]; second.LoggerName != "api" || second.Timestamp.IsZero() {
		t.Fatalf("defaults not applied: %+v", second)
	}
}

func TestIngestLogsRejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"malformed", `{"logs":[`, http.StatusBadRequest, ""},
		{"empty body", ``, http.StatusBadRequest, ""},
		{"unknown field", `{"records":[]}`, http.StatusUnprocessableEntity, "records"},
		{"no records", `{"logs":[]}`, http.StatusUnprocessableEntity, "logs"},
		{"too many", `{"logs":[{},{},{}]}`, http.StatusUnprocessableEntity, "logs"},
		{"undecodable record", `{"logs":[{"message":"ok"},"just text"]}`, http.StatusUnprocessableEntity, "logs[1]"},
		{"two values", `{"logs":[{}]} {}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			h := newTestServer(t, Config{MaxRecords: 2}, Services{Writer: w})

			rec, resp := do(t, h, http.MethodPost, "/api/logs", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if resp.Success {
				t.Fatalf("response marked successful")
			}
			if tt.field != "" {
				fields, _ := resp.Metadata["fields"].(map[string]any)
				if _, ok := fields[tt.field]; !ok {
					t.Fatalf("missing field error %q in %+v", tt.field, resp.Metadata)
				}
			}
			if len(w.records) != 0 {
				t.Fatalf("rejected request wrote %d records", len(w.records))
			}
		})
	}
}

func TestIngestWithoutTarget(t *testing.T) {
	h := newTestServer(t, Config{}, Services{})

	if rec, _ := do(t, h, http.MethodPost, "/api/logs", `{"logs":[{}]}`); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/stats", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("stats status = %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	h := newTestServer(t, Config{}, Services{Stats: fixedStats{}})

	rec, resp := do(t, h, http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stats, _ := resp.Data["stats"].(map[string]any)
	if resp.Data["table"] != "AppLogs" || stats["written"] != float64(4) || stats["dropped_batches"] != float64(1) {
		t.Fatalf("unexpected data %+v", resp.Data)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "logtable_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	h := newTestServer(t, Config{}, Services{Gatherer: reg})
	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "logtable_test_total 3") {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}

	h = newTestServer(t, Config{}, Services{})
	if rec, _ := do(t, h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("metrics without gatherer = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	w := &recordingWriter{}
	h := newTestServer(t, Config{RateLimit: RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}}, Services{Writer: w})

	for i := 0; i < 2; i++ {
		if rec, _ := do(t, h, http.MethodPost, "/api/logs", `{"logs":[{}]}`); rec.Code != http.StatusAccepted {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if rec, _ := do(t, h, http.MethodPost, "/api/logs", `{"logs":[{}]}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d", rec.Code)
	}

	// Health checks are not limited.
	if rec, _ := do(t, h, http.MethodGet, "/api/healthcheck", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthcheck status = %d", rec.Code)
	}
}

func TestClientLimiterEvictsIdleClients(t *testing.T) {
	now := time.Now()
	l := newClientLimiter(RateLimitConfig{RequestsPerSecond: 1})
	l.now = func() time.Time { return now }

	l.allow("a")
	now = now.Add(clientIdleTTL + time.Second)
	l.allow("b")

	if _, ok := l.clients["a"]; ok || len(l.clients) != 1 {
		t.Fatalf("clients = %v", l.clients)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{},
		{Addr: ":8080", CertFile: "cert.pem"},
		{Addr: ":8080", RateLimit: RateLimitConfig{RequestsPerSecond: -1}},
		{Addr: ":8080", MaxRecords: -1},
	}
	for _, c := range bad {
		if err := c.Validate(); !fault.Is(err, fault.InvalidConfigCode) {
			t.Fatalf("Validate(%+v) = %v", c, err)
		}
	}
	if err := (Config{Addr: ":8080"}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
