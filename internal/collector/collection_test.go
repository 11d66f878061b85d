package collector

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/xmarks/internal/types"
)

func post(id, text string) types.Post {
	return types.Post{ID: id, Text: text, URL: "https://x.com/a/status/" + id, Media: []types.Media{}}
}

func TestCollectionMergeIdempotent(t *testing.T) {
	c := NewCollection()
	batch := []types.Post{post("1", "a"), post("2", "b")}

	if added := c.Merge(batch); added != 2 {
		t.Fatalf("expected 2 added, got %d", added)
	}
	before := c.Values()

	if added := c.Merge(batch); added != 0 {
		t.Errorf("expected 0 added on re-merge, got %d", added)
	}
	if diff := cmp.Diff(before, c.Values()); diff != "" {
		t.Errorf("re-merge changed collection (-before +after):\n%s", diff)
	}
}

func TestCollectionLastWriteWins(t *testing.T) {
	c := NewCollection()
	c.Merge([]types.Post{post("1", "old"), post("2", "keep")})
	c.Merge([]types.Post{post("1", "new")})

	got := c.Values()
	want := []types.Post{post("1", "new"), post("2", "keep")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestCollectionIgnoresEmptyID(t *testing.T) {
	c := NewCollection()
	c.Merge([]types.Post{post("", "anonymous"), post("3", "ok")})

	if c.Len() != 1 {
		t.Fatalf("expected 1 post, got %d", c.Len())
	}
	if _, ok := c.Get(""); ok {
		t.Error("empty id must never be stored")
	}
}

func TestCollectionInsertionOrder(t *testing.T) {
	c := NewCollection()
	c.Merge([]types.Post{post("30", ""), post("10", "")})
	c.Merge([]types.Post{post("20", ""), post("30", "updated")})

	var ids []string
	for _, p := range c.Values() {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]string{"30", "10", "20"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectionClear(t *testing.T) {
	c := NewCollection()
	c.Merge([]types.Post{post("1", "")})
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("expected empty collection, got %d", c.Len())
	}
	if v := c.Values(); v == nil || len(v) != 0 {
		t.Errorf("expected empty non-nil values, got %#v", v)
	}
}

func TestCollectionValuesAreCopies(t *testing.T) {
	c := NewCollection()
	c.Merge([]types.Post{post("1", "orig")})

	v := c.Values()
	v[0].Text = "mutated"

	got, _ := c.Get("1")
	if got.Text != "orig" {
		t.Errorf("collection mutated through Values copy: %q", got.Text)
	}
}

func TestStopSignal(t *testing.T) {
	var s StopSignal
	if s.consume() {
		t.Error("fresh signal should not be pending")
	}

	s.Request()
	if !s.Requested() {
		t.Error("expected pending stop after Request")
	}
	if !s.consume() {
		t.Error("consume should report the pending stop")
	}
	if s.Requested() {
		t.Error("consume should clear the stop")
	}

	s.Request()
	s.Reset()
	if s.Requested() {
		t.Error("Reset should clear the stop")
	}
}
