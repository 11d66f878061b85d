package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/xmarks/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	post := &types.Post{ID: "1", Author: "  Jane  ", Handle: " jane ", Text: "  keep me  "}

	result, err := p.Process(post)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.Author != "Jane" || result.Handle != "jane" {
		t.Errorf("expected trimmed author/handle, got %q/%q", result.Author, result.Handle)
	}
	if result.Text != "  keep me  " {
		t.Errorf("text should be verbatim, got %q", result.Text)
	}
}

func TestRequiredIDMiddleware(t *testing.T) {
	m := &RequiredIDMiddleware{}

	if result, _ := m.Process(&types.Post{ID: "9"}); result == nil {
		t.Error("post with id should pass")
	}
	if result, _ := m.Process(&types.Post{Text: "no id"}); result != nil {
		t.Error("post without id should be dropped")
	}
}

func TestExcludeHandlesMiddleware(t *testing.T) {
	p := Default(testLogger, []string{"@Spammer", " "})
	if p.Len() != 3 {
		t.Fatalf("expected 3 middleware, got %d", p.Len())
	}

	result, err := p.Process(&types.Post{ID: "1", Handle: "spammer"})
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result != nil {
		t.Error("post from excluded handle should be dropped")
	}

	result, _ = p.Process(&types.Post{ID: "2", Handle: "friend"})
	if result == nil {
		t.Error("post from other handle should pass")
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "failing" }

func (failingMiddleware) Process(*types.Post) (*types.Post, error) {
	return nil, errors.New("boom")
}

func TestPipelineErrorNamesStage(t *testing.T) {
	p := New(testLogger)
	p.Use(failingMiddleware{})

	_, err := p.Process(&types.Post{ID: "1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != `pipeline stage "failing": boom` {
		t.Errorf("unexpected error %q", err.Error())
	}
}
