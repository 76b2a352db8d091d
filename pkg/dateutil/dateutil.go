package dateutil

import (
	"fmt"
	"time"
)

// DateLayout is the only accepted calendar-date format (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// Locale selects the language of weekday names
type Locale string

const (
	LocaleZH Locale = "zh"
	LocaleEN Locale = "en"
)

var weekdayNames = map[Locale][7]string{
	LocaleZH: {"周一", "周二", "周三", "周四", "周五", "周六", "周日"},
	LocaleEN: {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
}

// StartOfDay returns the start of the day (00:00:00) for the given date
func StartOfDay(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
}

// IsWeekday returns true if the date is Monday-Friday
func IsWeekday(date time.Time) bool {
	weekday := date.Weekday()
	return weekday >= time.Monday && weekday <= time.Friday
}

// IsWeekend returns true if the date is Saturday or Sunday
func IsWeekend(date time.Time) bool {
	weekday := date.Weekday()
	return weekday == time.Saturday || weekday == time.Sunday
}

// WeekdayIndex returns the weekday counted from Monday (0=Monday ... 6=Sunday)
func WeekdayIndex(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// WeekdayName returns the localized name of the date's weekday.
// Unknown locales fall back to Chinese.
func WeekdayName(date time.Time, locale Locale) string {
	names, ok := weekdayNames[locale]
	if !ok {
		names = weekdayNames[LocaleZH]
	}
	return names[WeekdayIndex(date)]
}

// ValidLocale reports whether weekday names exist for the locale
func ValidLocale(locale Locale) bool {
	_, ok := weekdayNames[locale]
	return ok
}

// FormatDate formats date as YYYY-MM-DD
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}

// ParseDate parses a strict YYYY-MM-DD date in the given location.
// A nil location means UTC.
func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must use YYYY-MM-DD format: %w", dateStr, err)
	}
	return t, nil
}

// TodayIn returns today's date (start of day) in the given location
func TodayIn(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return StartOfDay(now.In(loc))
}

// Today returns today's date (start of day)
func Today() time.Time {
	return StartOfDay(time.Now())
}
