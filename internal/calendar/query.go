package calendar

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/username/holiday-calendar/pkg/dateutil"
)

// Engine answers point queries about single dates
type Engine struct {
	provider YearProvider
	location *time.Location
	locale   dateutil.Locale
	now      func() time.Time
	logger   *zap.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLocation sets the time zone used for "today" and for parsing dates
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithLocale sets the language of weekday names
func WithLocale(locale dateutil.Locale) EngineOption {
	return func(e *Engine) {
		e.locale = locale
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a query engine on top of a year provider
func NewEngine(provider YearProvider, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		provider: provider,
		location: time.Local,
		locale:   dateutil.LocaleZH,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsHoliday reports whether the date is a day off.
// An empty date means today.
func (e *Engine) IsHoliday(ctx context.Context, date string) (bool, error) {
	info, err := e.resolve(ctx, "is_holiday", date)
	if err != nil {
		return false, err
	}
	return info.IsHoliday, nil
}

// IsWorkday reports whether the date is a working day.
// An empty date means today.
func (e *Engine) IsWorkday(ctx context.Context, date string) (bool, error) {
	info, err := e.resolve(ctx, "is_workday", date)
	if err != nil {
		return false, err
	}
	return info.IsWorkday, nil
}

// GetInfo returns detailed info for the date.
// An empty date means today.
func (e *Engine) GetInfo(ctx context.Context, date string) (*DayInfo, error) {
	return e.resolve(ctx, "info", date)
}

func (e *Engine) resolve(ctx context.Context, operation, dateStr string) (*DayInfo, error) {
	date, err := e.parse(dateStr)
	if err != nil {
		Queries.WithLabelValues(operation, "invalid_date").Inc()
		return nil, err
	}

	record, err := e.provider.GetYearData(ctx, date.Year(), e.now().In(e.location))
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrDataUnavailable) {
			outcome = "unavailable"
		}
		Queries.WithLabelValues(operation, outcome).Inc()
		return nil, err
	}

	info := Resolve(record, date, e.locale)
	Queries.WithLabelValues(operation, "ok").Inc()

	e.logger.Debug("Date resolved",
		zap.String("operation", operation),
		zap.String("date", info.Date),
		zap.Bool("is_holiday", info.IsHoliday),
		zap.Bool("is_workday", info.IsWorkday))

	return info, nil
}

// parse validates the input before any cache access
func (e *Engine) parse(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return dateutil.TodayIn(e.now(), e.location), nil
	}
	date, err := dateutil.ParseDate(dateStr, e.location)
	if err != nil {
		return time.Time{}, &InvalidDateError{Input: dateStr, Err: err}
	}
	return date, nil
}

// Resolve reduces a YearRecord to the answer for one date. Listed days use
// their explicit status; every other day is a holiday on Saturday and Sunday
// and a workday otherwise. IsHoliday and IsWorkday are always complementary.
func Resolve(record *YearRecord, date time.Time, locale dateutil.Locale) *DayInfo {
	info := &DayInfo{
		Date:        dateutil.FormatDate(date),
		Weekday:     dateutil.WeekdayIndex(date),
		WeekdayName: dateutil.WeekdayName(date, locale),
	}

	isHoliday := dateutil.IsWeekend(date)
	if record != nil {
		if entry, ok := record.Lookup(date); ok {
			isHoliday = entry.Status == StatusHoliday
			info.Name = entry.Name
		}
	}

	info.IsHoliday = isHoliday
	info.IsWorkday = !isHoliday
	return info
}
