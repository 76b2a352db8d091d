package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

const (
	// DefaultCachePath is the cache file used when none is configured
	DefaultCachePath = "holiday_data/holiday_cache.json"

	corruptSuffix   = ".corrupt"
	filePermissions = 0o644
	dirPermissions  = 0o755
)

// FileStore implements Store on a single JSON file
type FileStore struct {
	path   string
	logger *zap.Logger

	// mu orders quarantine against Save so a good file written in between
	// is never moved aside
	mu sync.Mutex
}

// NewFileStore creates a new FileStore instance
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if path == "" {
		path = DefaultCachePath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Path returns the cache file location
func (fs *FileStore) Path() string {
	return fs.path
}

// Backend returns the backend name used in metrics
func (fs *FileStore) Backend() string {
	return "file"
}

// Load reads the cache file
func (fs *FileStore) Load(ctx context.Context) (*CacheFile, error) {
	if err := ctx.Err(); err != nil {
		return NewCacheFile(), err
	}

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist yet - will be created on first save
			fs.logger.Debug("Cache file not found, starting empty",
				zap.String("file", fs.path))
			return NewCacheFile(), nil
		}
		StoreErrors.WithLabelValues(fs.Backend(), "load").Inc()
		return NewCacheFile(), fmt.Errorf("failed to read cache file %s: %w", fs.path, err)
	}

	cf, err := decodeCacheFile(data)
	if err != nil {
		StoreCorruptions.WithLabelValues(fs.Backend()).Inc()
		fs.quarantine(data)
		return NewCacheFile(), &CorruptStoreError{Path: fs.path, Err: err}
	}

	fs.logger.Debug("Cache file loaded",
		zap.String("file", fs.path),
		zap.Int("years", len(cf.Years)))

	return cf, nil
}

// quarantine moves an unparsable cache file aside so it can be inspected.
// The file is only moved if it still holds the bad content; the next Save
// recreates it.
func (fs *FileStore) quarantine(bad []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	current, err := os.ReadFile(fs.path)
	if err != nil || !bytes.Equal(current, bad) {
		fs.logger.Debug("Cache file changed since load, not moving it aside",
			zap.String("file", fs.path))
		return
	}

	target := fs.path + corruptSuffix
	if err := os.Rename(fs.path, target); err != nil {
		fs.logger.Warn("Failed to move corrupt cache file aside",
			zap.String("file", fs.path),
			zap.Error(err))
		return
	}
	fs.logger.Warn("Corrupt cache file moved aside",
		zap.String("file", fs.path),
		zap.String("moved_to", target))
}

// Save writes the cache file atomically: temp file in the same directory,
// fsync, then rename over the target
func (fs *FileStore) Save(ctx context.Context, cf *CacheFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeCacheFile(cf)
	if err != nil {
		StoreErrors.WithLabelValues(fs.Backend(), "save").Inc()
		return err
	}

	if err := fs.writeAtomic(data); err != nil {
		StoreErrors.WithLabelValues(fs.Backend(), "save").Inc()
		return err
	}

	fs.logger.Debug("Cache file saved",
		zap.String("file", fs.path),
		zap.Int("bytes", len(data)))

	return nil
}

func (fs *FileStore) writeAtomic(data []byte) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, fs.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
