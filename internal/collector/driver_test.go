package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/xmarks/internal/config"
	"github.com/IshaanNene/xmarks/internal/pipeline"
	"github.com/IshaanNene/xmarks/internal/scraper"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeViewport serves one page of articles per iteration and a scripted
// sequence of scroll heights.
type fakeViewport struct {
	heights     []int
	pages       [][]string
	onHTML      func(call int)
	htmlErr     error
	htmlCalls   int
	heightCalls int
	scrolls     []float64
	statuses    []string
	cleared     int
}

func (f *fakeViewport) HTML(ctx context.Context) (string, error) {
	f.htmlCalls++
	if f.onHTML != nil {
		f.onHTML(f.htmlCalls)
	}
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	var ids []string
	if len(f.pages) > 0 {
		idx := f.htmlCalls - 1
		if idx >= len(f.pages) {
			idx = len(f.pages) - 1
		}
		ids = f.pages[idx]
	}
	return feedPage(ids...), nil
}

func (f *fakeViewport) ScrollBy(ctx context.Context, fraction float64) error {
	f.scrolls = append(f.scrolls, fraction)
	return nil
}

func (f *fakeViewport) ScrollHeight(ctx context.Context) (int, error) {
	f.heightCalls++
	if len(f.heights) == 0 {
		// Unbounded feed: grows forever.
		return f.heightCalls * 1000, nil
	}
	idx := f.heightCalls - 1
	if idx >= len(f.heights) {
		idx = len(f.heights) - 1
	}
	return f.heights[idx], nil
}

func (f *fakeViewport) ShowStatus(ctx context.Context, msg string) error {
	f.statuses = append(f.statuses, msg)
	return nil
}

func (f *fakeViewport) ClearStatus(ctx context.Context) error {
	f.cleared++
	return nil
}

func feedPage(ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<article data-testid="tweet"><a href="/user%s">User</a><a href="/user%s/status/%s">t</a><div data-testid="tweetText">post %s</div></article>`, id, id, id, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func noWait(ctx context.Context, d time.Duration) error { return ctx.Err() }

func testScrollConfig() config.ScrollConfig {
	cfg := config.DefaultConfig().Scroll
	cfg.Delay = 0
	return cfg
}

func newTestDriver(vp Viewport, c *Collection, cfg config.ScrollConfig) *Driver {
	return NewDriver(vp, scraper.New(testLogger), c, cfg, testLogger,
		WithPipeline(pipeline.Default(testLogger, nil)),
		WithWaiter(noWait),
	)
}

func TestRunConvergesAfterFiveRepeatedReadings(t *testing.T) {
	vp := &fakeViewport{
		heights: []int{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000},
		pages:   [][]string{{"1", "2"}},
	}
	d := newTestDriver(vp, NewCollection(), testScrollConfig())

	res, err := d.Run(context.Background(), &StopSignal{}, nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	if res.Reason != StopConverged {
		t.Errorf("expected converged, got %s", res.Reason)
	}
	// First reading differs from the initial zero; the next five are repeats.
	if vp.heightCalls != 6 {
		t.Errorf("expected 6 height readings, got %d", vp.heightCalls)
	}
	if res.Iterations != 6 {
		t.Errorf("expected 6 iterations, got %d", res.Iterations)
	}
	if res.Collected != 2 {
		t.Errorf("expected 2 collected, got %d", res.Collected)
	}
	if vp.cleared != 1 {
		t.Errorf("expected overlay cleared once, got %d", vp.cleared)
	}
}

func TestRunHeightChangeResetsStallCounter(t *testing.T) {
	vp := &fakeViewport{
		heights: []int{100, 100, 200, 200, 200, 200, 200, 200},
		pages:   [][]string{{"1"}},
	}
	d := newTestDriver(vp, NewCollection(), testScrollConfig())

	res, err := d.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if res.Reason != StopConverged {
		t.Errorf("expected converged, got %s", res.Reason)
	}
	if vp.heightCalls != 8 {
		t.Errorf("expected 8 readings, got %d", vp.heightCalls)
	}
}

func TestRunStopObservedAtNextIteration(t *testing.T) {
	stop := &StopSignal{}
	vp := &fakeViewport{
		pages: [][]string{{"1"}, {"1", "2"}, {"2", "3"}, {"3", "4"}},
	}
	vp.onHTML = func(call int) {
		if call == 3 {
			stop.Request()
		}
	}
	d := newTestDriver(vp, NewCollection(), testScrollConfig())

	res, err := d.Run(context.Background(), stop, nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	if res.Reason != StopCancelled {
		t.Errorf("expected cancelled, got %s", res.Reason)
	}
	// Iteration 3 finishes its scrape, scroll and measurement before stopping.
	if vp.htmlCalls != 3 {
		t.Errorf("expected 3 scrapes, got %d", vp.htmlCalls)
	}
	if vp.heightCalls != 3 {
		t.Errorf("expected iteration 3 to complete, got %d readings", vp.heightCalls)
	}
	if res.Collected != 3 {
		t.Errorf("expected 3 collected, got %d", res.Collected)
	}
	if stop.Requested() {
		t.Error("stop flag should be cleared once observed")
	}
}

func TestRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	vp := &fakeViewport{pages: [][]string{{"1"}}}
	vp.onHTML = func(call int) {
		if call == 2 {
			cancel()
		}
	}
	d := newTestDriver(vp, NewCollection(), testScrollConfig())

	res, err := d.Run(ctx, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Reason != StopCancelled {
		t.Errorf("expected cancelled, got %s", res.Reason)
	}
	if res.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", res.Iterations)
	}
}

func TestRunMaxIterations(t *testing.T) {
	cfg := testScrollConfig()
	cfg.MaxIterations = 4
	vp := &fakeViewport{pages: [][]string{{"1"}}}
	d := newTestDriver(vp, NewCollection(), cfg)

	res, err := d.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if res.Reason != StopLimit || res.Iterations != 4 {
		t.Errorf("expected limit after 4 iterations, got %s after %d", res.Reason, res.Iterations)
	}
}

func TestRunReportsProgressAndScrollsByFraction(t *testing.T) {
	vp := &fakeViewport{
		heights: []int{500, 500, 500, 500, 500, 500},
		pages:   [][]string{{"1"}, {"1", "2"}, {"2", "3"}},
	}
	d := newTestDriver(vp, NewCollection(), testScrollConfig())

	var progress []int
	if _, err := d.Run(context.Background(), nil, func(n int) { progress = append(progress, n) }); err != nil {
		t.Fatalf("run error: %v", err)
	}

	if len(progress) != 6 || progress[0] != 1 || progress[2] != 3 || progress[5] != 3 {
		t.Errorf("unexpected progress sequence %v", progress)
	}
	for _, f := range vp.scrolls {
		if f != 0.8 {
			t.Errorf("expected scroll fraction 0.8, got %v", f)
		}
	}
	if vp.statuses[2] != "Collected: 3 bookmarks" {
		t.Errorf("unexpected status %q", vp.statuses[2])
	}
}

func TestRunReusesCollectionAcrossRuns(t *testing.T) {
	c := NewCollection()
	cfg := testScrollConfig()
	cfg.MaxIterations = 1

	first := newTestDriver(&fakeViewport{pages: [][]string{{"1", "2"}}}, c, cfg)
	if _, err := first.Run(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}

	second := newTestDriver(&fakeViewport{pages: [][]string{{"2", "3"}}}, c, cfg)
	res, err := second.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if res.Collected != 3 {
		t.Errorf("expected 3 collected across runs, got %d", res.Collected)
	}
	if res.Added != 1 {
		t.Errorf("expected 1 added by second run, got %d", res.Added)
	}
}

func TestScanPropagatesSnapshotError(t *testing.T) {
	vp := &fakeViewport{htmlErr: errors.New("page crashed")}
	d := newTestDriver(vp, NewCollection(), testScrollConfig())

	if _, err := d.Scan(context.Background()); err == nil {
		t.Fatal("expected error from snapshot failure")
	}
}
