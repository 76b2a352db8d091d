package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

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

// setupCLI writes a config pointing at a fake origin and a temp cache file.
// The counter includes requests for years the origin does not serve.
func setupCLI(t *testing.T) (string, *int32) {
	t.Helper()

	var fetches int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		if r.URL.Path != "/2024.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(origin2024))
	}))
	t.Cleanup(origin.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf(`
cache:
  backend: file
  path: %s
source:
  url_template: %s/{year}.json
  timeout: 2s
calendar:
  timezone: Asia/Shanghai
  locale: zh
log:
  level: error
`, filepath.Join(dir, "holiday_cache.json"), origin.URL)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path, &fetches
}

// cachePath returns the cache file configured by setupCLI
func cachePath(cfgPath string) string {
	return filepath.Join(filepath.Dir(cfgPath), "holiday_cache.json")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_IsHolidayAndIsWorkday(t *testing.T) {
	cfgPath, fetches := setupCLI(t)

	out, err := run(t, "-c", cfgPath, "is-holiday", "2024-01-01")
	if err != nil {
		t.Fatalf("is-holiday error = %v", err)
	}
	if strings.TrimSpace(out) != "true" {
		t.Errorf("is-holiday output = %q, want true", out)
	}

	out, err = run(t, "-c", cfgPath, "is-workday", "2024-02-04")
	if err != nil {
		t.Fatalf("is-workday error = %v", err)
	}
	if strings.TrimSpace(out) != "true" {
		t.Errorf("is-workday output = %q, want true", out)
	}

	// second command is served from the cache file
	if n := atomic.LoadInt32(fetches); n != 1 {
		t.Errorf("origin fetched %d times, want 1", n)
	}
}

func TestCLI_InfoJSON(t *testing.T) {
	cfgPath, _ := setupCLI(t)

	out, err := run(t, "-c", cfgPath, "info", "--json", "2024-01-01")
	if err != nil {
		t.Fatalf("info error = %v", err)
	}

	var info calendar.DayInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("Unmarshal(%q) error = %v", out, err)
	}
	if !info.IsHoliday || info.Weekday != 0 || info.WeekdayName != "周一" || info.Name != "元旦" {
		t.Errorf("info = %+v", info)
	}
}

func TestCLI_InfoText(t *testing.T) {
	cfgPath, _ := setupCLI(t)

	out, err := run(t, "-c", cfgPath, "info", "2024-02-04")
	if err != nil {
		t.Fatalf("info error = %v", err)
	}
	for _, want := range []string{"2024-02-04 (周日)", "Holiday:  false", "Workday:  true", "春节"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_Errors(t *testing.T) {
	cfgPath, _ := setupCLI(t)

	if _, err := run(t, "-c", cfgPath, "info", "2024/13/40"); !errors.Is(err, calendar.ErrInvalidDate) {
		t.Errorf("info invalid date error = %v, want ErrInvalidDate", err)
	}
	if _, err := run(t, "-c", cfgPath, "is-holiday", "2030-01-01"); !errors.Is(err, calendar.ErrDataUnavailable) {
		t.Errorf("is-holiday 2030 error = %v, want ErrDataUnavailable", err)
	}
	if _, err := run(t, "-c", cfgPath, "refresh", "next"); err == nil {
		t.Error("refresh with invalid year expected error, got nil")
	}
}

func TestCLI_RefreshAndCacheShow(t *testing.T) {
	cfgPath, fetches := setupCLI(t)

	out, err := run(t, "-c", cfgPath, "cache", "show")
	if err != nil {
		t.Fatalf("cache show error = %v", err)
	}
	if !strings.Contains(out, "No cached years") {
		t.Errorf("cache show on empty cache = %q", out)
	}

	out, err = run(t, "-c", cfgPath, "refresh", "2024")
	if err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	if !strings.Contains(out, "Refreshed 2024: 1 holidays, 1 adjusted workdays") {
		t.Errorf("refresh output = %q", out)
	}

	out, err = run(t, "-c", cfgPath, "cache", "show")
	if err != nil {
		t.Fatalf("cache show error = %v", err)
	}
	if !strings.Contains(out, "Backend: file") || !strings.Contains(out, "2024 |        1 |        1") {
		t.Errorf("cache show output:\n%s", out)
	}

	if n := atomic.LoadInt32(fetches); n != 1 {
		t.Errorf("origin fetched %d times, want 1", n)
	}
}

func TestCLI_OneShotCommandsServeFreshCurrentYearFromCache(t *testing.T) {
	cfgPath, fetches := setupCLI(t)

	shanghai, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}
	now := time.Now().In(shanghai)
	year := now.Year()
	newYear := fmt.Sprintf("%d-01-01", year)

	record := calendar.NewYearRecord(year, now)
	record.Entries[newYear] = calendar.Entry{Status: calendar.StatusHoliday, Name: "元旦"}
	store := calendar.NewFileStore(cachePath(cfgPath), nil)
	if err := store.Save(context.Background(), calendar.NewCacheFile().PutYear(record)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		out, err := run(t, "-c", cfgPath, "is-holiday", newYear)
		if err != nil {
			t.Fatalf("is-holiday run %d error = %v", i+1, err)
		}
		if strings.TrimSpace(out) != "true" {
			t.Errorf("is-holiday run %d output = %q, want true", i+1, out)
		}
	}

	if n := atomic.LoadInt32(fetches); n != 0 {
		t.Errorf("origin requested %d times, want 0 for a freshly cached current year", n)
	}
}
