package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/username/holiday-calendar/pkg/dateutil"
)

// DayStatus represents an explicit override of the weekday default
type DayStatus int

const (
	StatusHoliday DayStatus = iota + 1
	StatusAdjustedWorkday
)

// String returns the wire name of the status
func (s DayStatus) String() string {
	switch s {
	case StatusHoliday:
		return "holiday"
	case StatusAdjustedWorkday:
		return "workday"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its wire name
func (s DayStatus) MarshalJSON() ([]byte, error) {
	if s != StatusHoliday && s != StatusAdjustedWorkday {
		return nil, fmt.Errorf("unknown day status %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status from its wire name
func (s *DayStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("day status must be a string: %w", err)
	}
	switch name {
	case "holiday":
		*s = StatusHoliday
	case "workday":
		*s = StatusAdjustedWorkday
	default:
		return fmt.Errorf("unknown day status %q", name)
	}
	return nil
}

// Entry is one explicitly listed day of a year
type Entry struct {
	Status DayStatus `json:"status"`
	Name   string    `json:"name,omitempty"`
}

// YearRecord is the sparse holiday table of one calendar year.
// Only holidays and adjusted workdays are listed; every other day
// follows the weekday default.
type YearRecord struct {
	Year      int              `json:"year"`
	Entries   map[string]Entry `json:"entries"` // key: YYYY-MM-DD
	FetchedAt time.Time        `json:"fetched_at"`
	Stale     bool             `json:"stale,omitempty"`
}

// NewYearRecord creates an empty record for the year
func NewYearRecord(year int, fetchedAt time.Time) *YearRecord {
	return &YearRecord{
		Year:      year,
		Entries:   make(map[string]Entry),
		FetchedAt: fetchedAt,
	}
}

// Lookup returns the explicit entry for the date, if listed
func (r *YearRecord) Lookup(date time.Time) (Entry, bool) {
	entry, ok := r.Entries[dateutil.FormatDate(date)]
	return entry, ok
}

// Validate checks that every entry belongs to the record's year
func (r *YearRecord) Validate() error {
	if r.Year <= 0 {
		return fmt.Errorf("invalid year %d", r.Year)
	}
	prefix := strconv.Itoa(r.Year) + "-"
	for key, entry := range r.Entries {
		if _, err := dateutil.ParseDate(key, time.UTC); err != nil {
			return fmt.Errorf("entry %q: %w", key, err)
		}
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			return fmt.Errorf("entry %q is outside year %d", key, r.Year)
		}
		if entry.Status != StatusHoliday && entry.Status != StatusAdjustedWorkday {
			return fmt.Errorf("entry %q has unknown status %d", key, int(entry.Status))
		}
	}
	return nil
}

// Clone returns a deep copy of the record
func (r *YearRecord) Clone() *YearRecord {
	clone := *r
	clone.Entries = make(map[string]Entry, len(r.Entries))
	for k, v := range r.Entries {
		clone.Entries[k] = v
	}
	return &clone
}

// Counts returns the number of listed holidays and adjusted workdays
func (r *YearRecord) Counts() (holidays, workdays int) {
	for _, entry := range r.Entries {
		switch entry.Status {
		case StatusHoliday:
			holidays++
		case StatusAdjustedWorkday:
			workdays++
		}
	}
	return holidays, workdays
}

// DayInfo is the resolved answer for a single date
type DayInfo struct {
	Date        string `json:"date"`
	IsHoliday   bool   `json:"is_holiday"`
	IsWorkday   bool   `json:"is_workday"`
	Weekday     int    `json:"weekday"` // 0=Monday ... 6=Sunday
	WeekdayName string `json:"weekday_name"`
	Name        string `json:"name,omitempty"`
}

// Source fetches one year of holiday data from a remote origin
type Source interface {
	FetchYear(ctx context.Context, year int) (*YearRecord, error)
}

// YearProvider hands out the holiday record of a year
type YearProvider interface {
	GetYearData(ctx context.Context, year int, now time.Time) (*YearRecord, error)
}
