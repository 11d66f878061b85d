package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/xmarks/internal/types"
)

// Middleware processes a post and returns the (possibly modified) post.
// Return nil to drop the post from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a post. Return nil to drop the post.
	Process(post *types.Post) (*types.Post, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default returns the pipeline every collected post goes through.
func Default(logger *slog.Logger, excludeHandles []string) *Pipeline {
	p := New(logger)
	p.Use(&RequiredIDMiddleware{})
	p.Use(&TrimMiddleware{})
	if len(excludeHandles) > 0 {
		p.Use(NewExcludeHandlesMiddleware(excludeHandles))
	}
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the post through all middleware in order.
func (p *Pipeline) Process(post *types.Post) (*types.Post, error) {
	current := post

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %q: %w", mw.Name(), err)
		}
		if result == nil {
			p.logger.Debug("post dropped", "stage", mw.Name(), "id", post.ID)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// RequiredIDMiddleware drops posts without an id.
type RequiredIDMiddleware struct{}

func (m *RequiredIDMiddleware) Name() string { return "required_id" }

func (m *RequiredIDMiddleware) Process(post *types.Post) (*types.Post, error) {
	if post.ID == "" {
		return nil, nil
	}
	return post, nil
}

// TrimMiddleware trims whitespace around the author name and handle.
// Body text is left verbatim.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(post *types.Post) (*types.Post, error) {
	post.Author = strings.TrimSpace(post.Author)
	post.Handle = strings.TrimSpace(post.Handle)
	return post, nil
}

// ExcludeHandlesMiddleware drops posts from the listed accounts.
type ExcludeHandlesMiddleware struct {
	handles map[string]struct{}
}

func NewExcludeHandlesMiddleware(handles []string) *ExcludeHandlesMiddleware {
	m := &ExcludeHandlesMiddleware{handles: make(map[string]struct{}, len(handles))}
	for _, h := range handles {
		h = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
		if h != "" {
			m.handles[h] = struct{}{}
		}
	}
	return m
}

func (m *ExcludeHandlesMiddleware) Name() string { return "exclude_handles" }

func (m *ExcludeHandlesMiddleware) Process(post *types.Post) (*types.Post, error) {
	if _, ok := m.handles[strings.ToLower(post.Handle)]; ok {
		return nil, nil
	}
	return post, nil
}
