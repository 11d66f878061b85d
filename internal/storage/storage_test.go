package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/IshaanNene/xmarks/internal/export"
	"github.com/IshaanNene/xmarks/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestFileSinkWritesPayload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	sink, err := NewFileSink(dir, testLogger)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	batch := Batch{Payload: &export.Payload{Filename: "x-bookmarks-2024-01-02.json", Format: "json", Data: []byte("[]")}}
	path, err := sink.Store(context.Background(), batch)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if path != filepath.Join(dir, "x-bookmarks-2024-01-02.json") {
		t.Errorf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("unexpected content %q", data)
	}

	// Same-day export overwrites and leaves no temp files behind.
	batch.Payload.Data = []byte(`[{"id":"1"}]`)
	if _, err := sink.Store(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected 1 file, found %d", len(entries))
	}
}

func TestFileSinkRejectsEmptyBatch(t *testing.T) {
	sink, err := NewFileSink(t.TempDir(), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sink.Store(context.Background(), Batch{}); err == nil {
		t.Error("expected error for batch without payload")
	}
}

type stubSink struct {
	name   string
	err    error
	stored int
	closed bool
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Store(ctx context.Context, b Batch) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.stored++
	return s.name + "-loc", nil
}

func (s *stubSink) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

func TestMultiSinkFansOut(t *testing.T) {
	ok := &stubSink{name: "ok"}
	bad := &stubSink{name: "bad", err: errors.New("down")}
	other := &stubSink{name: "other"}

	multi := NewMultiSink([]Sink{ok, bad, other}, testLogger)
	loc, err := multi.Store(context.Background(), Batch{Posts: []types.Post{{ID: "1"}}})

	var se *types.StorageError
	if !errors.As(err, &se) || se.Backend != "bad" {
		t.Fatalf("expected StorageError from bad sink, got %v", err)
	}
	if ok.stored != 1 || other.stored != 1 {
		t.Error("healthy sinks should still receive the batch")
	}
	if loc != "ok-loc, other-loc" {
		t.Errorf("unexpected locations %q", loc)
	}

	if err := multi.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !ok.closed || !bad.closed || !other.closed {
		t.Error("all sinks should be closed")
	}
}
