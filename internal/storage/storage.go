package storage

import (
	"context"

	"github.com/IshaanNene/xmarks/internal/export"
	"github.com/IshaanNene/xmarks/internal/types"
)

// Batch is one export: the serialized payload and the posts it was built from.
type Batch struct {
	Payload *export.Payload
	Posts   []types.Post
}

// Sink is the interface for all export destinations.
type Sink interface {
	// Store persists one export batch and returns where it went.
	Store(ctx context.Context, batch Batch) (string, error)

	// Close flushes pending writes and releases resources.
	Close(ctx context.Context) error

	// Name returns the sink identifier.
	Name() string
}
