package content

import (
	"context"
	"errors"
	"testing"

	"article-video-gen/internal/model"
)

type fakeLister struct {
	pages    [][]model.Post
	total    int
	failAt   int
	requests []int
}

func (f *fakeLister) ListPosts(_ context.Context, page, _ int) (model.PostPage, error) {
	f.requests = append(f.requests, page)
	if page == f.failAt {
		return model.PostPage{}, errors.New("upstream exploded")
	}
	if page > len(f.pages) {
		return model.PostPage{}, ErrNoMorePages
	}
	return model.PostPage{Page: page, TotalPages: f.total, Posts: f.pages[page-1]}, nil
}

func posts(ids ...int64) []model.Post {
	out := make([]model.Post, len(ids))
	for i, id := range ids {
		out[i] = model.Post{ID: id}
	}
	return out
}

func collect(t *testing.T, p *Pager) []int64 {
	t.Helper()
	var ids []int64
	for p.Next(context.Background()) {
		for _, post := range p.Posts() {
			ids = append(ids, post.ID)
		}
	}
	return ids
}

func TestPagerStopsAtTotalPages(t *testing.T) {
	src := &fakeLister{pages: [][]model.Post{posts(1, 2), posts(3), posts(99)}, total: 2}
	p := NewPager(src, 2)

	ids := collect(t, p)
	if len(ids) != 3 || ids[2] != 3 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if len(src.requests) != 2 {
		t.Errorf("expected 2 requests, got %v", src.requests)
	}
	if p.Err() != nil {
		t.Errorf("unexpected error %v", p.Err())
	}
	if p.Next(context.Background()) {
		t.Error("pager restarted after exhaustion")
	}
}

func TestPagerTreatsNoMorePagesAsEnd(t *testing.T) {
	// no total signal: iterate until the source says stop
	src := &fakeLister{pages: [][]model.Post{posts(1), posts(2)}}
	p := NewPager(src, 1)

	ids := collect(t, p)
	if len(ids) != 2 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if p.Err() != nil {
		t.Fatalf("ErrNoMorePages must not surface: %v", p.Err())
	}
	if len(src.requests) != 3 {
		t.Errorf("expected a terminal request, got %v", src.requests)
	}
}

func TestPagerSurfacesErrors(t *testing.T) {
	src := &fakeLister{pages: [][]model.Post{posts(1), posts(2)}, failAt: 2}
	p := NewPager(src, 1)

	ids := collect(t, p)
	if len(ids) != 1 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if p.Err() == nil {
		t.Fatal("expected error")
	}
}

func TestPagerHonoursCancellation(t *testing.T) {
	src := &fakeLister{pages: [][]model.Post{posts(1)}}
	p := NewPager(src, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if p.Next(ctx) {
		t.Fatal("expected no page after cancellation")
	}
	if !errors.Is(p.Err(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", p.Err())
	}
}
