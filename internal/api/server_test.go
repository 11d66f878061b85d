package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/xmarks/internal/collector"
	"github.com/IshaanNene/xmarks/internal/export"
	"github.com/IshaanNene/xmarks/internal/session"
	"github.com/IshaanNene/xmarks/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeController struct {
	mu      sync.Mutex
	posts   []types.Post
	scanErr error
	running bool
	stopCh  chan struct{}
}

func (f *fakeController) Scan(ctx context.Context) (int, error) {
	if f.scanErr != nil {
		return 0, f.scanErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, types.Post{ID: "42", Author: "A", URL: "https://x.com/a/status/42"})
	return 1, nil
}

func (f *fakeController) AutoScroll(ctx context.Context, onProgress collector.ProgressFunc) (*collector.Result, error) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil, types.ErrBusy
	}
	f.running = true
	f.stopCh = make(chan struct{})
	stopCh := f.stopCh
	f.mu.Unlock()

	onProgress(5)
	select {
	case <-stopCh:
	case <-ctx.Done():
	}
	return &collector.Result{Reason: collector.StopCancelled, Iterations: 3, Added: 5, Collected: 5}, nil
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return types.ErrNotRunning
	}
	f.running = false
	close(f.stopCh)
	return nil
}

func (f *fakeController) Export(ctx context.Context, format string) (*export.Payload, string, error) {
	f.mu.Lock()
	posts := append([]types.Post(nil), f.posts...)
	f.mu.Unlock()
	if len(posts) == 0 {
		return nil, "", types.ErrEmptyCollection
	}
	if format == "" {
		format = "json"
	}
	payload, err := export.NewFormatter("x-bookmarks").Format(posts, format)
	if err != nil {
		return nil, "", err
	}
	return payload, "output/" + payload.Filename, nil
}

func (f *fakeController) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = nil
	return nil
}

func (f *fakeController) Posts() []types.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Post{}, f.posts...)
}

func (f *fakeController) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return session.StateRunning
	}
	return session.StateIdle
}

func (f *fakeController) Count() int { return len(f.Posts()) }

func (f *fakeController) Stats() map[string]int64 { return map[string]int64{"posts_scraped": 1} }

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestScanAndExport(t *testing.T) {
	ctrl := &fakeController{}
	h := NewServer(0, ctrl, testLogger).Handler()

	rec := do(t, h, "POST", "/api/export")
	if rec.Code != http.StatusNotFound {
		t.Errorf("export of empty collection: got %d", rec.Code)
	}

	rec = do(t, h, "POST", "/api/scan")
	if rec.Code != http.StatusOK {
		t.Fatalf("scan: got %d", rec.Code)
	}
	var scan map[string]int
	decode(t, rec, &scan)
	if scan["added"] != 1 || scan["collected"] != 1 {
		t.Errorf("unexpected scan body %v", scan)
	}

	rec = do(t, h, "POST", "/api/export?format=csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, ".csv") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	if rec.Header().Get("X-Export-Count") != "1" {
		t.Errorf("unexpected count header %q", rec.Header().Get("X-Export-Count"))
	}
	if !strings.HasPrefix(rec.Body.String(), "id,author,handle,text,url,timestamp,media_urls,quote_tweet_url\n42,") {
		t.Errorf("unexpected CSV body:\n%s", rec.Body.String())
	}

	rec = do(t, h, "POST", "/api/export?format=xml")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported format: got %d", rec.Code)
	}

	rec = do(t, h, "GET", "/api/bookmarks")
	var posts []types.Post
	decode(t, rec, &posts)
	if len(posts) != 1 || posts[0].ID != "42" {
		t.Errorf("unexpected bookmarks %+v", posts)
	}

	rec = do(t, h, "DELETE", "/api/bookmarks")
	if rec.Code != http.StatusOK || ctrl.Count() != 0 {
		t.Errorf("clear: got %d, %d left", rec.Code, ctrl.Count())
	}
}

func TestScanWrongPage(t *testing.T) {
	h := NewServer(0, &fakeController{scanErr: types.ErrWrongPage}, testLogger).Handler()

	rec := do(t, h, "POST", "/api/scan")
	if rec.Code != http.StatusConflict {
		t.Errorf("got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] != session.WrongPageMessage {
		t.Errorf("unexpected error %q", body["error"])
	}
}

func TestScrollLifecycle(t *testing.T) {
	ctrl := &fakeController{}
	srv := NewServer(0, ctrl, testLogger)
	h := srv.Handler()

	rec := do(t, h, "POST", "/api/stop")
	if rec.Code != http.StatusConflict {
		t.Errorf("stop while idle: got %d", rec.Code)
	}

	rec = do(t, h, "POST", "/api/scroll")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("scroll: got %d", rec.Code)
	}
	var run Run
	decode(t, rec, &run)
	if run.Status != "running" || run.ID == "" {
		t.Errorf("unexpected run %+v", run)
	}

	rec = do(t, h, "POST", "/api/scroll")
	if rec.Code != http.StatusConflict {
		t.Errorf("second scroll: got %d", rec.Code)
	}

	rec = do(t, h, "GET", "/api/status")
	var status map[string]any
	decode(t, rec, &status)
	if status["state"] != "running" {
		t.Errorf("unexpected status %v", status)
	}

	if rec = do(t, h, "POST", "/api/stop"); rec.Code != http.StatusOK {
		t.Fatalf("stop: got %d", rec.Code)
	}

	var got *Run
	for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline); time.Sleep(5 * time.Millisecond) {
		if got = srv.getRun(run.ID); got != nil && got.Status == "done" {
			break
		}
	}
	if got == nil || got.Status != "done" {
		t.Fatalf("run did not finish: %+v", got)
	}
	if got.Reason != "cancelled" || got.Iterations != 3 || got.FinishedAt == nil {
		t.Errorf("unexpected finished run %+v", got)
	}

	rec = do(t, h, "GET", "/api/runs/"+run.ID)
	if rec.Code != http.StatusOK {
		t.Errorf("get run: got %d", rec.Code)
	}
	if rec = do(t, h, "GET", "/api/runs/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown run: got %d", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestShutdownStopsRunningScroll(t *testing.T) {
	ctrl := &fakeController{}
	srv := NewServer(0, ctrl, testLogger)

	if rec := do(t, srv.Handler(), "POST", "/api/scroll"); rec.Code != http.StatusAccepted {
		t.Fatalf("scroll: got %d", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if ctrl.State() != session.StateIdle {
		t.Error("scroll still running after shutdown")
	}
}

func TestControlPage(t *testing.T) {
	h := NewServer(0, &fakeController{}, testLogger).Handler()

	rec := do(t, h, "GET", "/")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "Auto-scroll") {
		t.Errorf("control page: got %d", rec.Code)
	}
	if rec = do(t, h, "GET", "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: got %d", rec.Code)
	}
}
