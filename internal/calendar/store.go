package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// cacheFileVersion is bumped when the on-disk layout changes incompatibly
const cacheFileVersion = 1

// CacheFile holds zero or more YearRecords, at most one per year
type CacheFile struct {
	Version int
	Years   map[int]*YearRecord
}

// cacheFileJSON is the serialized form; JSON object keys must be strings
type cacheFileJSON struct {
	Version int                    `json:"version"`
	Years   map[string]*YearRecord `json:"years"`
}

// NewCacheFile returns an empty CacheFile
func NewCacheFile() *CacheFile {
	return &CacheFile{
		Version: cacheFileVersion,
		Years:   make(map[int]*YearRecord),
	}
}

// GetYear returns the record for the year, if present
func (cf *CacheFile) GetYear(year int) (*YearRecord, bool) {
	if cf == nil {
		return nil, false
	}
	record, ok := cf.Years[year]
	return record, ok
}

// PutYear returns a copy of the CacheFile with the record inserted or
// replaced for its year. The receiver is left untouched.
func (cf *CacheFile) PutYear(record *YearRecord) *CacheFile {
	updated := NewCacheFile()
	if cf != nil {
		for year, r := range cf.Years {
			updated.Years[year] = r
		}
	}
	updated.Years[record.Year] = record
	return updated
}

// SortedYears returns the cached years in ascending order
func (cf *CacheFile) SortedYears() []int {
	years := make([]int, 0, len(cf.Years))
	for year := range cf.Years {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

// MarshalJSON encodes the CacheFile with years as object keys
func (cf *CacheFile) MarshalJSON() ([]byte, error) {
	out := cacheFileJSON{
		Version: cf.Version,
		Years:   make(map[string]*YearRecord, len(cf.Years)),
	}
	if out.Version == 0 {
		out.Version = cacheFileVersion
	}
	for year, record := range cf.Years {
		out.Years[strconv.Itoa(year)] = record
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates a CacheFile
func (cf *CacheFile) UnmarshalJSON(data []byte) error {
	var in cacheFileJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Version > cacheFileVersion {
		return fmt.Errorf("unsupported cache version %d", in.Version)
	}

	years := make(map[int]*YearRecord, len(in.Years))
	for key, record := range in.Years {
		year, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid year key %q: %w", key, err)
		}
		if record == nil {
			return fmt.Errorf("year %d has no record", year)
		}
		if record.Year != year {
			return fmt.Errorf("year key %d holds record for %d", year, record.Year)
		}
		if record.Entries == nil {
			record.Entries = make(map[string]Entry)
		}
		if err := record.Validate(); err != nil {
			return fmt.Errorf("year %d: %w", year, err)
		}
		years[year] = record
	}

	cf.Version = cacheFileVersion
	cf.Years = years
	return nil
}

// encodeCacheFile renders the human-inspectable form shared by all backends
func encodeCacheFile(cf *CacheFile) ([]byte, error) {
	if cf == nil {
		cf = NewCacheFile()
	}
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache file: %w", err)
	}
	return append(data, '\n'), nil
}

// decodeCacheFile parses serialized content; empty content is an empty file
func decodeCacheFile(data []byte) (*CacheFile, error) {
	cf := NewCacheFile()
	if len(data) == 0 {
		return cf, nil
	}
	if err := json.Unmarshal(data, cf); err != nil {
		return nil, err
	}
	return cf, nil
}

// Store persists the CacheFile.
//
// Load always returns a usable CacheFile. A missing store yields an empty
// CacheFile and a nil error. Content that fails to decode yields an empty
// CacheFile and a *CorruptStoreError. Any other error (I/O, network) means
// the content is unknown, and the empty CacheFile must not be saved back.
// Save must be atomic with respect to concurrent Loads.
type Store interface {
	Load(ctx context.Context) (*CacheFile, error)
	Save(ctx context.Context, cf *CacheFile) error
	Backend() string
}
