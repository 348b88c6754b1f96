package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type LocalProvider struct {
	basePath string
}

func NewLocalProvider(basePath string) *LocalProvider {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		slog.Error("Failed to ensure local storage directory exists", "path", basePath, "error", err)
	}
	return &LocalProvider{
		basePath: basePath,
	}
}

func (p *LocalProvider) path(key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.basePath, filepath.FromSlash(key)), nil
}

func (p *LocalProvider) StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error) {
	errChan := make(chan error, 1)
	fail := func(err error) (io.WriteCloser, <-chan error) {
		errChan <- err
		close(errChan)
		return nil, errChan
	}

	fullPath, err := p.path(key)
	if err != nil {
		return fail(err)
	}
	// Ensure subdirectories exist if key contains them
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(fmt.Errorf("failed to create directory %s: %w", dir, err))
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return fail(fmt.Errorf("failed to create file %s: %w", fullPath, err))
	}

	// The wrapper closes the error channel on Close().
	return &localWriter{
		f:       f,
		errChan: errChan,
		path:    fullPath,
	}, errChan
}

func (p *LocalProvider) OpenFile(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := p.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Sweep deletes export files older than cutoff and prunes emptied
// per-query directories.
func (p *LocalProvider) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	root := filepath.Join(p.basePath, filepath.FromSlash(ExportPrefix))
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, dir := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !dir.IsDir() {
			continue
		}
		dirPath := filepath.Join(root, dir.Name())
		files, err := os.ReadDir(dirPath)
		if err != nil {
			return removed, err
		}
		kept := 0
		for _, f := range files {
			info, err := f.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				kept++
				continue
			}
			if err := os.Remove(filepath.Join(dirPath, f.Name())); err != nil {
				kept++
				slog.Warn("Failed to remove archived export", "path", f.Name(), "error", err)
				continue
			}
			removed++
		}
		if kept == 0 {
			_ = os.Remove(dirPath)
		}
	}
	return removed, nil
}

type localWriter struct {
	f       *os.File
	errChan chan error
	path    string
}

func (w *localWriter) Write(p []byte) (n int, err error) {
	return w.f.Write(p)
}

func (w *localWriter) Close() error {
	err := w.f.Close()
	if err != nil {
		w.errChan <- err
	} else {
		slog.Debug("Local file write completed", "path", w.path)
		w.errChan <- nil
	}
	close(w.errChan)
	return err
}
