package content

import (
	"context"
	"errors"

	"article-video-gen/internal/model"
)

type Lister interface {
	ListPosts(ctx context.Context, page, perPage int) (model.PostPage, error)
}

// Pager walks the catalog one page at a time. It is finite and cannot be
// restarted; iteration stops at the reported total page count, on an empty
// page, or when the source signals ErrNoMorePages.
//
//	p := content.NewPager(src, 20)
//	for p.Next(ctx) {
//		for _, post := range p.Posts() { ... }
//	}
//	if err := p.Err(); err != nil { ... }
type Pager struct {
	src     Lister
	perPage int

	next  int
	total int
	page  int
	posts []model.Post
	err   error
	done  bool
}

func NewPager(src Lister, perPage int) *Pager {
	if perPage <= 0 {
		perPage = 20
	}
	return &Pager{src: src, perPage: perPage, next: 1}
}

func (p *Pager) Next(ctx context.Context) bool {
	if p.done {
		return false
	}
	if p.total > 0 && p.next > p.total {
		p.finish(nil)
		return false
	}
	if err := ctx.Err(); err != nil {
		p.finish(err)
		return false
	}

	page, err := p.src.ListPosts(ctx, p.next, p.perPage)
	if errors.Is(err, ErrNoMorePages) {
		p.finish(nil)
		return false
	}
	if err != nil {
		p.finish(err)
		return false
	}
	if len(page.Posts) == 0 {
		p.finish(nil)
		return false
	}

	p.page = p.next
	p.next++
	if page.TotalPages > 0 {
		p.total = page.TotalPages
	}
	p.posts = page.Posts
	return true
}

func (p *Pager) finish(err error) {
	p.done = true
	p.posts = nil
	p.err = err
}

// Posts returns the page loaded by the last successful Next.
func (p *Pager) Posts() []model.Post { return p.posts }

// Page is the 1-based number of the current page.
func (p *Pager) Page() int { return p.page }

// TotalPages is the last total reported by the source, 0 when unknown.
func (p *Pager) TotalPages() int { return p.total }

func (p *Pager) Err() error { return p.err }
