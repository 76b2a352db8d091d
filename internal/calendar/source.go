package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/username/holiday-calendar/pkg/dateutil"
)

const (
	// DefaultSourceURL is the holiday-cn dataset, one JSON document per year
	DefaultSourceURL   = "https://cdn.jsdelivr.net/gh/NateScarlet/holiday-cn@master/{year}.json"
	defaultHTTPTimeout = 10 * time.Second
	maxPayloadBytes    = 1 << 20
)

// HolidayCNSource implements Source using the holiday-cn JSON dataset
type HolidayCNSource struct {
	httpClient  *http.Client
	urlTemplate string
	logger      *zap.Logger
	now         func() time.Time
}

// holidayCNYear represents the holiday-cn JSON structure
type holidayCNYear struct {
	Year   int            `json:"year"`
	Papers []string       `json:"papers"`
	Days   []holidayCNDay `json:"days"`
}

type holidayCNDay struct {
	Name     string `json:"name"`
	Date     string `json:"date"` // "YYYY-MM-DD"
	IsOffDay bool   `json:"isOffDay"`
}

// NewHolidayCNSource creates a source. urlTemplate must contain "{year}";
// an empty template selects DefaultSourceURL.
func NewHolidayCNSource(urlTemplate string, timeout time.Duration, logger *zap.Logger) *HolidayCNSource {
	if urlTemplate == "" {
		urlTemplate = DefaultSourceURL
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HolidayCNSource{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		urlTemplate: urlTemplate,
		logger:      logger,
		now:         time.Now,
	}
}

// URL returns the resource address for the year
func (s *HolidayCNSource) URL(year int) string {
	return strings.ReplaceAll(s.urlTemplate, "{year}", strconv.Itoa(year))
}

// FetchYear downloads and parses one year of holiday data. It performs a
// single request and never retries.
func (s *HolidayCNSource) FetchYear(ctx context.Context, year int) (*YearRecord, error) {
	url := s.URL(year)

	s.logger.Info("Downloading holiday data",
		zap.String("url", url),
		zap.Int("year", year))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Year: year, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Year: year, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		return nil, &FetchError{
			Year:       year,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var payload holidayCNYear
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		return nil, &FetchError{Year: year, URL: url, Err: fmt.Errorf("failed to parse holiday JSON: %w", err)}
	}

	record, err := s.toRecord(year, &payload)
	if err != nil {
		return nil, &FetchError{Year: year, URL: url, Err: err}
	}

	holidays, workdays := record.Counts()
	s.logger.Info("Holiday data downloaded",
		zap.Int("year", year),
		zap.Int("holidays", holidays),
		zap.Int("adjusted_workdays", workdays))

	return record, nil
}

// toRecord converts the holiday-cn payload into a sparse YearRecord
func (s *HolidayCNSource) toRecord(year int, payload *holidayCNYear) (*YearRecord, error) {
	if payload.Year != year {
		return nil, fmt.Errorf("payload is for year %d, requested %d", payload.Year, year)
	}

	record := NewYearRecord(year, s.now())
	for _, day := range payload.Days {
		date, err := dateutil.ParseDate(day.Date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("day %q: %w", day.Name, err)
		}
		// holiday-cn lists some days of the neighbouring year (e.g. New Year
		// adjustments in late December); those belong to the other file
		if date.Year() != year {
			s.logger.Debug("Skipping day outside requested year",
				zap.String("date", day.Date),
				zap.Int("year", year))
			continue
		}

		status := StatusAdjustedWorkday
		if day.IsOffDay {
			status = StatusHoliday
		}
		record.Entries[day.Date] = Entry{Status: status, Name: day.Name}
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}
