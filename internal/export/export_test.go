package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/IshaanNene/xmarks/internal/types"
)

var fixedNow = time.Date(2024, 5, 17, 23, 30, 0, 0, time.UTC)

func newTestFormatter() *Formatter {
	f := NewFormatter("")
	f.now = func() time.Time { return fixedNow }
	return f
}

func samplePost() types.Post {
	return types.Post{
		ID:        "5",
		Author:    `Jane "J" Doe`,
		Handle:    "jane",
		Text:      "line1\nline2",
		URL:       "https://x.com/jane/status/5",
		Timestamp: "2024-05-01T12:00:00.000Z",
		Media: []types.Media{
			{Kind: types.MediaImage, URL: "https://pbs.twimg.com/media/A?format=jpg&name=large"},
			{Kind: types.MediaVideoThumbnail, URL: "https://pbs.twimg.com/thumb.jpg"},
		},
		QuoteTweet: &types.QuotedPost{Text: "q", URL: "https://x.com/bob/status/4"},
	}
}

func TestCSVEscaping(t *testing.T) {
	p, err := newTestFormatter().Format([]types.Post{samplePost()}, FormatCSV)
	if err != nil {
		t.Fatalf("format error: %v", err)
	}

	lines := strings.Split(string(p.Data), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines:\n%s", len(lines), p.Data)
	}

	if lines[0] != "id,author,handle,text,url,timestamp,media_urls,quote_tweet_url" {
		t.Errorf("unexpected header %q", lines[0])
	}

	want := `5,"Jane ""J"" Doe",jane,"line1 line2",https://x.com/jane/status/5,2024-05-01T12:00:00.000Z,` +
		`"https://pbs.twimg.com/media/A?format=jpg&name=large; https://pbs.twimg.com/thumb.jpg",https://x.com/bob/status/4`
	if lines[1] != want {
		t.Errorf("row mismatch\n got: %s\nwant: %s", lines[1], want)
	}
}

func TestCSVWithoutQuoteOrMedia(t *testing.T) {
	post := types.Post{ID: "7", Handle: "h", URL: "https://x.com/h/status/7", Media: []types.Media{}}

	p, err := newTestFormatter().Format([]types.Post{post}, "CSV")
	if err != nil {
		t.Fatalf("format error: %v", err)
	}

	row := strings.Split(string(p.Data), "\n")[1]
	if row != `7,"",h,"",https://x.com/h/status/7,,"",` {
		t.Errorf("unexpected row %q", row)
	}
	if p.Filename != "x-bookmarks-2024-05-17.csv" {
		t.Errorf("unexpected filename %q", p.Filename)
	}
}

func TestJSONEmptyCollection(t *testing.T) {
	p, err := newTestFormatter().Format(nil, FormatJSON)
	if err != nil {
		t.Fatalf("format error: %v", err)
	}
	if string(p.Data) != "[]" {
		t.Errorf("expected [], got %q", p.Data)
	}
	if p.Count != 0 {
		t.Errorf("expected count 0, got %d", p.Count)
	}
}

func TestJSONFieldStructure(t *testing.T) {
	p, err := newTestFormatter().Format([]types.Post{samplePost(), {ID: "6", Media: []types.Media{}}}, FormatJSON)
	if err != nil {
		t.Fatalf("format error: %v", err)
	}

	if !strings.HasPrefix(string(p.Data), "[\n  {\n    \"id\": \"5\",") {
		t.Errorf("expected two-space indentation, got:\n%s", p.Data)
	}
	if strings.Contains(string(p.Data), `\u0026`) || !strings.Contains(string(p.Data), "&name=large") {
		t.Error("ampersands should not be HTML-escaped")
	}

	var decoded []map[string]any
	if err := json.Unmarshal(p.Data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	var keys []string
	for k := range decoded[0] {
		keys = append(keys, k)
	}
	wantKeys := []string{"author", "handle", "id", "media", "quoteTweet", "text", "timestamp", "url"}
	if diff := cmp.Diff(wantKeys, keys, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("key mismatch (-want +got):\n%s", diff)
	}

	if decoded[1]["quoteTweet"] != nil {
		t.Errorf("absent quote should encode as null, got %v", decoded[1]["quoteTweet"])
	}
	media := decoded[0]["media"].([]any)
	if media[1].(map[string]any)["type"] != "video_thumbnail" {
		t.Errorf("unexpected media entry %v", media[1])
	}
	if p.Filename != "x-bookmarks-2024-05-17.json" || p.ContentType != "application/json" {
		t.Errorf("unexpected payload meta %q %q", p.Filename, p.ContentType)
	}
}

func TestFormatDoesNotMutateInput(t *testing.T) {
	posts := []types.Post{samplePost()}
	before := posts[0].Clone()

	if _, err := newTestFormatter().Format(posts, FormatCSV); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(*before, posts[0]); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := newTestFormatter().Format(nil, "xml")
	if !errors.Is(err, types.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFilenameUsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	local := time.Date(2024, 1, 1, 5, 0, 0, 0, loc) // still Dec 31 in UTC

	if got := Filename("marks", "json", local); got != "marks-2023-12-31.json" {
		t.Errorf("unexpected filename %q", got)
	}
}
