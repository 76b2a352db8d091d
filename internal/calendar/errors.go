package calendar

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is
var (
	// ErrInvalidDate indicates a caller-supplied date that is not YYYY-MM-DD
	ErrInvalidDate = errors.New("invalid date")

	// ErrFetch indicates the remote origin was unreachable or returned unusable data
	ErrFetch = errors.New("fetch failed")

	// ErrCorruptStore indicates the durable cache could not be read or parsed
	ErrCorruptStore = errors.New("corrupt cache store")

	// ErrDataUnavailable indicates no data could be obtained for a year
	ErrDataUnavailable = errors.New("holiday data unavailable")
)

// InvalidDateError is returned before any cache access for malformed input
type InvalidDateError struct {
	Input string
	Err   error
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q, use YYYY-MM-DD format", e.Input)
}

func (e *InvalidDateError) Unwrap() error { return e.Err }

func (e *InvalidDateError) Is(target error) bool { return target == ErrInvalidDate }

// FetchError describes a failed remote fetch
type FetchError struct {
	Year       int
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch holiday data for %d: %s returned status %d", e.Year, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch holiday data for %d from %s: %v", e.Year, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// CorruptStoreError reports cache content that fails to decode. Stores
// return it together with an empty CacheFile; it never reaches query callers.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("cache store %s is unreadable: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

func (e *CorruptStoreError) Is(target error) bool { return target == ErrCorruptStore }

// DataUnavailableError is the terminal failure of a query for a year that
// is neither cached nor fetchable
type DataUnavailableError struct {
	Year int
	Err  error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("holiday data for %d is unavailable: %v", e.Year, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }
