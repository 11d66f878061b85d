package storage

import (
	"context"
	"log/slog"
	"strings"

	"github.com/IshaanNene/xmarks/internal/types"
)

// MultiSink writes each batch to several sinks.
type MultiSink struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMultiSink creates a sink that fans out to every given sink.
func NewMultiSink(sinks []Sink, logger *slog.Logger) *MultiSink {
	return &MultiSink{
		sinks:  sinks,
		logger: logger.With("component", "multi_sink"),
	}
}

func (s *MultiSink) Name() string { return "multi" }

// Store writes to every sink; the first failure is returned after all have run.
func (s *MultiSink) Store(ctx context.Context, batch Batch) (string, error) {
	var (
		locations []string
		firstErr  error
	)
	for _, sink := range s.sinks {
		loc, err := sink.Store(ctx, batch)
		if err != nil {
			s.logger.Error("sink store failed", "sink", sink.Name(), "error", err)
			if firstErr == nil {
				firstErr = &types.StorageError{Backend: sink.Name(), Err: err}
			}
			continue
		}
		locations = append(locations, loc)
	}
	return strings.Join(locations, ", "), firstErr
}

func (s *MultiSink) Close(ctx context.Context) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
