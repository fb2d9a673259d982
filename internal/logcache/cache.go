// Package logcache stores raw CI logs compressed on local disk. Logs
// are immutable once a job has finished, so cached entries are trusted
// without revalidation and survive across runs.
package logcache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/lei/ci-timings/pkg/logger"
)

// ErrWrite indicates a log could not be persisted. Unlike fetch
// failures this is never tolerated: a run that cannot populate its
// cache would refetch the same logs forever.
var ErrWrite = errors.New("log cache write failed")

// Cache is a gzip-compressed on-disk log store addressed by
// cache-relative paths.
type Cache struct {
	root   string
	logger *logger.Logger
}

// New creates a cache rooted at the given directory. The directory is
// created lazily on first write.
func New(root string, log *logger.Logger) *Cache {
	return &Cache{root: root, logger: log}
}

// Root returns the cache's base directory.
func (c *Cache) Root() string {
	return c.root
}

// GetOrFetch returns the log stored under path, calling fetch to
// obtain it on a miss. Fetched logs are persisted before they are
// returned, so a later run never refetches them.
func (c *Cache) GetOrFetch(path string, fetch func() (string, error)) (string, error) {
	dst := filepath.Join(c.root, filepath.FromSlash(path))

	raw, err := os.ReadFile(dst)
	if err == nil {
		text, err := gunzip(raw)
		if err != nil {
			return "", fmt.Errorf("decompress cached log %s: %w", path, err)
		}
		c.logger.Debug("logcache: hit", "path", path)
		return text, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read cached log %s: %w", path, err)
	}

	c.logger.Debug("logcache: miss", "path", path)
	text, err := fetch()
	if err != nil {
		return "", err
	}
	if err := c.write(dst, text); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return text, nil
}

// write persists a log atomically: the compressed bytes go to a temp
// file in the destination directory and are renamed into place, so a
// crash never leaves a truncated entry behind.
func (c *Cache) write(dst, text string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".log-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	gz, err := gzip.NewWriterLevel(tmp, gzip.BestCompression)
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := io.WriteString(gz, text); err != nil {
		tmp.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dst)
}

func gunzip(raw []byte) (string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer gz.Close()

	text, err := io.ReadAll(gz)
	if err != nil {
		return "", err
	}
	return string(text), nil
}
