// Package storage keeps copies of exported files so they can be downloaded
// again after the result handle behind them has expired.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("archived export not found")
	ErrInvalidKey = errors.New("invalid archive key")
)

// ExportPrefix is the key prefix of every archived export.
const ExportPrefix = "exports/"

// Provider defines the interface for storing exported data.
type Provider interface {
	// StreamToFile returns a WriteCloser. Data written to it is streamed to the storage destination.
	// The returned channel receives a single error (or nil) when the storage operation completes.
	StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error)

	// OpenFile opens the stored file for reading. Missing keys fail with ErrNotFound.
	OpenFile(ctx context.Context, key string) (io.ReadCloser, error)

	// Sweep removes archived exports last modified before cutoff.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// ExportKey is the archive key of an export file.
func ExportKey(queryID, filename string) string {
	return ExportPrefix + path.Join(path.Base(queryID), path.Base(filename))
}

// CleanKey validates a client-supplied key. Only keys below ExportPrefix
// without parent references are accepted.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.ReplaceAll(key, "\\", "/"), "/")
	if !strings.HasPrefix(key, ExportPrefix) {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return "", ErrInvalidKey
		}
	}
	cleaned := path.Clean(key)
	if cleaned == strings.TrimSuffix(ExportPrefix, "/") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
