package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileSink writes export payloads into a directory.
type FileSink struct {
	dir    string
	logger *slog.Logger
}

// NewFileSink creates a file sink rooted at dir, creating it if needed.
func NewFileSink(dir string, logger *slog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileSink{
		dir:    dir,
		logger: logger.With("component", "file_sink"),
	}, nil
}

func (s *FileSink) Name() string { return "file" }

// Store writes the payload to dir/<payload filename>, replacing any file of
// the same name.
func (s *FileSink) Store(ctx context.Context, batch Batch) (string, error) {
	if batch.Payload == nil {
		return "", fmt.Errorf("file sink: empty batch")
	}
	path := filepath.Join(s.dir, batch.Payload.Filename)

	tmp, err := os.CreateTemp(s.dir, "."+batch.Payload.Filename+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(batch.Payload.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename export: %w", err)
	}

	s.logger.Info("export written", "path", path, "format", batch.Payload.Format, "posts", batch.Payload.Count)
	return path, nil
}

func (s *FileSink) Close(ctx context.Context) error { return nil }
