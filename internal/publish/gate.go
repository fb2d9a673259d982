// Package publish decides whether a commit still needs processing and
// uploads finished records. The object store is the single source of
// truth: a commit is done when its record exists under commits/, and
// nothing ever checks more than that.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/lei/ci-timings/internal/models"
	"github.com/lei/ci-timings/internal/store"
	"github.com/lei/ci-timings/pkg/logger"
)

// Gate guards the publish step for per-commit records. Finished
// records are mirrored under <cacheDir>/commits/ so an interrupted
// upload can be retried with byte-identical content.
type Gate struct {
	store    store.ObjectStore
	cacheDir string
	logger   *logger.Logger
}

// NewGate creates a publish gate over the given store
func NewGate(st store.ObjectStore, cacheDir string, log *logger.Logger) *Gate {
	return &Gate{
		store:    st,
		cacheDir: cacheDir,
		logger:   log,
	}
}

// Key returns the store key of a commit's record
func Key(sha string) string {
	return "commits/" + sha + ".json.gz"
}

// AlreadyPublished reports whether the commit's record exists in the
// store
func (g *Gate) AlreadyPublished(ctx context.Context, sha string) (bool, error) {
	ok, err := g.store.Exists(ctx, Key(sha))
	if err != nil {
		return false, fmt.Errorf("check publish state for %s: %w", sha, err)
	}
	return ok, nil
}

// CachedRecord returns the locally mirrored record of a commit, if one
// was produced by an earlier run
func (g *Gate) CachedRecord(sha string) ([]byte, bool) {
	body, err := os.ReadFile(g.recordPath(sha))
	if err != nil {
		return nil, false
	}
	return body, true
}

// Publish serializes, mirrors, and uploads a commit record
func (g *Gate) Publish(ctx context.Context, sha string, commit *models.Commit) error {
	raw, err := json.Marshal(commit)
	if err != nil {
		return fmt.Errorf("serialize commit %s: %w", sha, err)
	}
	compressed, err := gzipBytes(raw)
	if err != nil {
		return fmt.Errorf("compress commit %s: %w", sha, err)
	}
	if err := g.mirror(sha, compressed); err != nil {
		return fmt.Errorf("mirror commit %s: %w", sha, err)
	}
	return g.Upload(ctx, sha, compressed)
}

// Upload pushes an already-serialized record to the store
func (g *Gate) Upload(ctx context.Context, sha string, compressed []byte) error {
	if err := g.store.Put(ctx, Key(sha), compressed); err != nil {
		return fmt.Errorf("publish commit %s: %w", sha, err)
	}

	g.logger.Info("publish: commit published",
		"sha", sha,
		"bytes", len(compressed))
	return nil
}

// Record loads a commit's record, preferring the local mirror and
// falling back to the store. Store hits are mirrored for the next
// caller. Returns store.ErrKeyNotFound when the record exists in
// neither place.
func (g *Gate) Record(ctx context.Context, sha string) (*models.Commit, error) {
	compressed, ok := g.CachedRecord(sha)
	if !ok {
		var err error
		compressed, err = g.store.Get(ctx, Key(sha))
		if err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("download record for %s: %w", sha, err)
		}
		if err := g.mirror(sha, compressed); err != nil {
			return nil, fmt.Errorf("mirror record for %s: %w", sha, err)
		}
		g.logger.Debug("publish: record downloaded", "sha", sha)
	}

	raw, err := gunzipBytes(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress record for %s: %w", sha, err)
	}
	var commit models.Commit
	if err := json.Unmarshal(raw, &commit); err != nil {
		return nil, fmt.Errorf("decode record for %s: %w", sha, err)
	}
	return &commit, nil
}

func (g *Gate) recordPath(sha string) string {
	return filepath.Join(g.cacheDir, "commits", sha+".json.gz")
}

// mirror writes a record atomically into the local cache
func (g *Gate) mirror(sha string, compressed []byte) error {
	dst := g.recordPath(sha)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".record-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// gzipBytes compresses at the highest level. Compression settings are
// part of the record format: republished records must match the stored
// bytes exactly.
func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(raw); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(compressed []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
