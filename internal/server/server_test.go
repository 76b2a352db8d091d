package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/username/holiday-calendar/internal/calendar"
)

const origin2024 = `{
  "year": 2024,
  "papers": [],
  "days": [
    {"name": "元旦", "date": "2024-01-01", "isOffDay": true},
    {"name": "春节", "date": "2024-02-04", "isOffDay": false}
  ]
}`

// newTestServer wires the real engine to a fake holiday-cn origin
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2024.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(origin2024))
	}))
	t.Cleanup(origin.Close)

	logger := zap.NewNop()
	source := calendar.NewHolidayCNSource(origin.URL+"/{year}.json", time.Second, logger)
	manager := calendar.NewManager(source, calendar.NewMemoryStore(), logger)
	clock := func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }
	engine := calendar.NewEngine(manager, logger, calendar.WithLocation(time.UTC), calendar.WithClock(clock))

	srv := httptest.NewServer(New(engine, "127.0.0.1:0", time.Second, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body error = %v", err)
	}
	return resp.StatusCode, body
}

func TestServer_BoolEndpoints(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		path string
		want BoolResult
	}{
		{"holiday", "/is_holiday?date=2024-01-01", BoolResult{Date: "2024-01-01", Result: true}},
		{"adjusted workday is not a holiday", "/is_holiday?date=2024-02-04", BoolResult{Date: "2024-02-04", Result: false}},
		{"adjusted workday", "/is_workday?date=2024-02-04", BoolResult{Date: "2024-02-04", Result: true}},
		{"plain saturday", "/is_workday?date=2024-03-02", BoolResult{Date: "2024-03-02", Result: false}},
		{"today", "/is_holiday", BoolResult{Date: "2024-01-01", Result: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, srv.URL+tt.path)
			if status != http.StatusOK {
				t.Fatalf("status = %d, body = %s", status, body)
			}
			var got BoolResult
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("response = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// rollingQuerier answers with a later day on every call, like a clock
// crossing midnight between two lookups
type rollingQuerier struct {
	mu    sync.Mutex
	calls int
}

func (q *rollingQuerier) GetInfo(ctx context.Context, date string) (*calendar.DayInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	day := time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC).AddDate(0, 0, q.calls-1)
	return &calendar.DayInfo{
		Date:      day.Format("2006-01-02"),
		IsHoliday: q.calls > 1,
		IsWorkday: q.calls == 1,
	}, nil
}

func TestServer_TodayResolvedOnce(t *testing.T) {
	querier := &rollingQuerier{}
	srv := httptest.NewServer(New(querier, "127.0.0.1:0", time.Second, zap.NewNop()).Handler())
	defer srv.Close()

	status, body := get(t, srv.URL+"/is_workday")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	var got BoolResult
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	querier.mu.Lock()
	calls := querier.calls
	querier.mu.Unlock()
	if calls != 1 {
		t.Errorf("GetInfo called %d times, want 1", calls)
	}
	want := BoolResult{Date: "2024-02-09", Result: true}
	if got != want {
		t.Errorf("response = %+v, want %+v", got, want)
	}
}

func TestServer_Info(t *testing.T) {
	srv := newTestServer(t)

	status, body := get(t, srv.URL+"/info?date=2024-01-01")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", status, body)
	}

	var info calendar.DayInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := calendar.DayInfo{
		Date:        "2024-01-01",
		IsHoliday:   true,
		IsWorkday:   false,
		Weekday:     0,
		WeekdayName: "周一",
		Name:        "元旦",
	}
	if info != want {
		t.Errorf("info = %+v, want %+v", info, want)
	}
}

func TestServer_ErrorStatus(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"invalid date", "/info?date=2024/13/40", http.StatusBadRequest},
		{"impossible date", "/is_holiday?date=2023-02-29", http.StatusBadRequest},
		{"year not published", "/is_workday?date=2030-05-01", http.StatusServiceUnavailable},
		{"wrong method", "/info", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status int
			var body []byte
			if tt.status == http.StatusMethodNotAllowed {
				resp, err := http.Post(srv.URL+tt.path, "text/plain", strings.NewReader(""))
				if err != nil {
					t.Fatalf("POST error = %v", err)
				}
				resp.Body.Close()
				status = resp.StatusCode
			} else {
				status, body = get(t, srv.URL+tt.path)
			}

			if status != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", status, tt.status, body)
			}
			if body != nil {
				var e ErrorResult
				if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
					t.Errorf("error body = %s, want {\"error\": ...}", body)
				}
			}
		})
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	if status, body := get(t, srv.URL+"/healthz"); status != http.StatusOK {
		t.Errorf("/healthz status = %d, body = %s", status, body)
	}

	// one query so the counters exist
	get(t, srv.URL+"/is_holiday?date=2024-01-01")

	status, body := get(t, srv.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("/metrics status = %d", status)
	}
	if !strings.Contains(string(body), "holiday_queries_total") {
		t.Error("/metrics does not expose holiday_queries_total")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&calendar.InvalidDateError{Input: "x"}, http.StatusBadRequest},
		{&calendar.DataUnavailableError{Year: 2030, Err: errors.New("offline")}, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestServer_StartStop(t *testing.T) {
	srv := New(&calendar.Engine{}, "127.0.0.1:0", time.Second, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		done <- srv.Start()
	}()

	// wait until the listener is bound
	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "127.0.0.1:0" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	status, _ := get(t, "http://"+srv.Addr()+"/healthz")
	if status != http.StatusOK {
		t.Errorf("/healthz status = %d", status)
	}

	srv.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}
