package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"article-video-gen/internal"
	"article-video-gen/internal/content"
	"article-video-gen/internal/logging"
	"article-video-gen/internal/model"
)

type fakeCatalog struct {
	pages [][]model.Post
}

func (c *fakeCatalog) ListPosts(_ context.Context, page, _ int) (model.PostPage, error) {
	if page > len(c.pages) {
		return model.PostPage{}, content.ErrNoMorePages
	}
	return model.PostPage{Page: page, TotalPages: len(c.pages), Posts: c.pages[page-1]}, nil
}

func (c *fakeCatalog) GetPost(_ context.Context, id int64) (model.Post, error) {
	for _, page := range c.pages {
		for _, p := range page {
			if p.ID == id {
				return p, nil
			}
		}
	}
	return model.Post{}, content.ErrNotFound
}

// fakeGenerator fails titles listed in fail and can hold every call until
// release is closed.
type fakeGenerator struct {
	mu      sync.Mutex
	titles  []string
	fail    map[string]bool
	started chan string
	release chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, images []model.RawImage, title string) model.VideoResult {
	g.mu.Lock()
	g.titles = append(g.titles, title)
	g.mu.Unlock()

	if g.started != nil {
		g.started <- title
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
		}
	}
	if g.fail[title] {
		return model.VideoResult{Status: model.VideoStatusError, Error: "render failed: boom"}
	}
	return model.VideoResult{
		Status: model.VideoStatusCompleted,
		URL:    "https://cdn.test/" + title + ".mp4",
		Meta:   model.VideoMeta{Duration: 3 * len(images), ImageCount: len(images), Format: model.VideoFormat},
	}
}

func (g *fakeGenerator) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.titles...)
}

// memJSON is an in-memory JSONStore.
type memJSON struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func newMemJSON() *memJSON { return &memJSON{objs: map[string][]byte{}} }

func (m *memJSON) ReadJSON(_ context.Context, key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (m *memJSON) WriteJSON(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = b
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	recs []model.VideoRecord
}

func (n *recordingNotifier) VideoReady(_ context.Context, rec model.VideoRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recs = append(n.recs, rec)
}

func img(u string) []model.RawImage { return []model.RawImage{{URL: u}} }

func post(id int64, title string, withImages bool) model.Post {
	p := model.Post{ID: id, Title: title}
	if withImages {
		p.Images = img("https://x.test/" + title + ".jpg")
	}
	return p
}

func testConfig() internal.Config {
	return internal.Config{
		WPPageSize:       2,
		ItemDelay:        0,
		ProcessedJSONKey: "processed.json",
		VideosJSONKey:    "videos.json",
		CatalogSchedule:  "@every 4h",
		ResetSchedule:    "@every 24h",
	}
}

func newTestService(cat *fakeCatalog, gen *fakeGenerator, objects *memJSON) (*Service, *[]time.Duration) {
	var store ProcessedStore
	if objects != nil {
		store = NewJSONProcessedStore(objects, "processed.json")
	}
	var js JSONStore
	if objects != nil {
		js = objects
	}
	s := NewService(testConfig(), cat, gen, store, js, logging.Discard())
	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return s, &sleeps
}
