package calendar

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Manager serves YearRecords from the Store and falls back to the Source
// when a year is missing or due for a refresh
type Manager struct {
	source Source
	store  Store
	logger *zap.Logger

	revalidateOncePerRun bool

	// group deduplicates concurrent work for the same year
	group singleflight.Group
	// mu serializes the load-put-save section so writes for different
	// years never overwrite each other
	mu sync.Mutex

	revalidatedMu sync.Mutex
	revalidated   map[int]bool
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithRevalidateOncePerRun makes the manager refetch the current year once
// per Manager lifetime, the first time that year is requested
func WithRevalidateOncePerRun(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.revalidateOncePerRun = enabled
	}
}

// NewManager creates a new cache manager
func NewManager(source Source, store Store, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if source == nil {
		panic("source cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		source:      source,
		store:       store,
		logger:      logger,
		revalidated: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NeedsRefresh reports whether a cached record must be refetched.
// Only the current year is ever refreshed: once the calendar year rolls
// over past the record's fetch time, or when the record is flagged stale.
// Past and future years are immutable.
func NeedsRefresh(record *YearRecord, now time.Time, year int) bool {
	if record == nil {
		return true
	}
	if year != now.Year() {
		return false
	}
	return record.Stale || record.FetchedAt.Year() < now.Year()
}

// GetYearData returns the holiday record for the year.
//
// Cached records are returned as is unless NeedsRefresh says otherwise. A
// missing year is fetched and persisted; if that fetch fails the result is
// a *DataUnavailableError. A failed refresh of a cached year degrades to the
// cached record.
//
// The caller may abandon the call through ctx; the shared work for the year
// still completes so the store is never left half-updated.
func (m *Manager) GetYearData(ctx context.Context, year int, now time.Time) (*YearRecord, error) {
	return m.do(ctx, "get:"+strconv.Itoa(year), func(ctx context.Context) (*YearRecord, error) {
		return m.getYearData(ctx, year, now)
	})
}

// Refresh refetches the year unconditionally and stores the result
func (m *Manager) Refresh(ctx context.Context, year int, now time.Time) (*YearRecord, error) {
	return m.do(ctx, "refresh:"+strconv.Itoa(year), func(ctx context.Context) (*YearRecord, error) {
		record, err := m.fetchAndStore(ctx, year, now)
		if err != nil {
			return nil, &DataUnavailableError{Year: year, Err: err}
		}
		return record, nil
	})
}

// Snapshot returns the current content of the store. Corruption yields an
// empty CacheFile, as everywhere else.
func (m *Manager) Snapshot(ctx context.Context) *CacheFile {
	cf, _ := m.load(ctx)
	return cf
}

func (m *Manager) do(ctx context.Context, key string, fn func(ctx context.Context) (*YearRecord, error)) (*YearRecord, error) {
	ch := m.group.DoChan(key, func() (interface{}, error) {
		// detached so one abandoned caller does not fail the others
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			m.logger.Debug("Shared in-flight year lookup", zap.String("key", key))
		}
		return res.Val.(*YearRecord).Clone(), nil
	}
}

func (m *Manager) getYearData(ctx context.Context, year int, now time.Time) (*YearRecord, error) {
	cf, _ := m.load(ctx)

	record, ok := cf.GetYear(year)
	if !ok {
		CacheMisses.Inc()
		m.logger.Info("Year not cached, fetching",
			zap.Int("year", year))

		fresh, err := m.fetchAndStore(ctx, year, now)
		if err != nil {
			m.logger.Error("Holiday data unavailable",
				zap.Int("year", year),
				zap.Error(err))
			return nil, &DataUnavailableError{Year: year, Err: err}
		}
		return fresh, nil
	}

	if !m.shouldRefresh(record, now, year) {
		CacheHits.WithLabelValues(m.store.Backend()).Inc()
		m.logger.Debug("Using cached year",
			zap.Int("year", year),
			zap.Time("fetched_at", record.FetchedAt))
		return record, nil
	}

	m.logger.Info("Refreshing cached year",
		zap.Int("year", year),
		zap.Time("fetched_at", record.FetchedAt),
		zap.Bool("stale", record.Stale))

	fresh, err := m.fetchAndStore(ctx, year, now)
	if err != nil {
		Refreshes.WithLabelValues("degraded").Inc()
		m.logger.Warn("Refresh failed, serving cached data",
			zap.Int("year", year),
			zap.Error(err))
		return record, nil
	}

	Refreshes.WithLabelValues("ok").Inc()
	return fresh, nil
}

func (m *Manager) shouldRefresh(record *YearRecord, now time.Time, year int) bool {
	if NeedsRefresh(record, now, year) {
		return true
	}
	if !m.revalidateOncePerRun || year != now.Year() {
		return false
	}

	m.revalidatedMu.Lock()
	defer m.revalidatedMu.Unlock()
	return !m.revalidated[year]
}

func (m *Manager) markRevalidated(year int) {
	m.revalidatedMu.Lock()
	m.revalidated[year] = true
	m.revalidatedMu.Unlock()
}

// fetchAndStore fetches the year and merges it into the store. A failed
// save is logged; the fetched record is still returned. When the store cannot
// be read the save is skipped, since writing back would drop the other years.
func (m *Manager) fetchAndStore(ctx context.Context, year int, now time.Time) (*YearRecord, error) {
	// attempt counts even on failure so an offline process does not refetch
	// the current year on every query
	if year == now.Year() {
		defer m.markRevalidated(year)
	}

	record, err := m.source.FetchYear(ctx, year)
	if err != nil {
		Fetches.WithLabelValues("error").Inc()
		return nil, err
	}
	if record == nil {
		Fetches.WithLabelValues("error").Inc()
		return nil, &FetchError{Year: year, Err: errors.New("source returned no data")}
	}
	if record.Year != year {
		Fetches.WithLabelValues("error").Inc()
		return nil, &FetchError{Year: year, Err: fmt.Errorf("source returned year %d", record.Year)}
	}
	if err := record.Validate(); err != nil {
		Fetches.WithLabelValues("error").Inc()
		return nil, &FetchError{Year: year, Err: err}
	}
	Fetches.WithLabelValues("ok").Inc()

	record = record.Clone()
	record.Stale = false

	m.mu.Lock()
	defer m.mu.Unlock()

	// reload inside the critical section to keep other years' writes
	cf, err := m.load(ctx)
	if err != nil {
		m.logger.Warn("Cache store unavailable, not persisting holiday data",
			zap.Int("year", year),
			zap.String("backend", m.store.Backend()),
			zap.Error(err))
		return record, nil
	}
	if err := m.store.Save(ctx, cf.PutYear(record)); err != nil {
		m.logger.Warn("Failed to persist holiday data",
			zap.Int("year", year),
			zap.String("backend", m.store.Backend()),
			zap.Error(err))
		return record, nil
	}

	holidays, workdays := record.Counts()
	m.logger.Info("Holiday data cached",
		zap.Int("year", year),
		zap.Int("holidays", holidays),
		zap.Int("adjusted_workdays", workdays))

	return record, nil
}

// load reads the store and self-heals corruption by starting empty. The
// returned CacheFile is never nil. The error is non-nil only when the store
// could not be read at all; the empty CacheFile is then safe to query but
// must not be saved.
func (m *Manager) load(ctx context.Context) (*CacheFile, error) {
	cf, err := m.store.Load(ctx)
	if cf == nil {
		cf = NewCacheFile()
	}
	if err == nil {
		return cf, nil
	}

	if errors.Is(err, ErrCorruptStore) {
		m.logger.Warn("Cache store unreadable, treating as empty",
			zap.String("backend", m.store.Backend()),
			zap.Error(err))
		return cf, nil
	}

	m.logger.Warn("Failed to load cache store, treating as empty",
		zap.String("backend", m.store.Backend()),
		zap.Error(err))
	return NewCacheFile(), err
}
