// Package sink provides record sinks consuming the crawler output stream.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jfourny/profilescout/internal/crawler"
)

// JSONLWriter appends one JSON object per line to a file. It is the default
// consumer of the record stream.
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLWriter opens (or creates) the output file, creating parent
// directories as needed.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open output file %s: %w", path, err)
	}
	return &JSONLWriter{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Emit writes one record as a single JSON line.
func (w *JSONLWriter) Emit(ctx context.Context, rec crawler.ProfileRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context finished: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ProfileURL, err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}
