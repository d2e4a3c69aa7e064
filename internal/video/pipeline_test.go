package video

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"article-video-gen/internal"
	"article-video-gen/internal/logging"
	"article-video-gen/internal/model"
)

type fakeStorage struct {
	mu    sync.Mutex
	names []string
	sizes []int
	err   error
}

func (s *fakeStorage) Store(_ context.Context, data []byte, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.names = append(s.names, name)
	s.sizes = append(s.sizes, len(data))
	return "https://cdn.test/videos/" + name, nil
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG fake image bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) internal.Config {
	return internal.Config{
		WorkDir:         t.TempDir(),
		ClipDuration:    3 * time.Second,
		ConcatBatchSize: 5,
		MinImageSize:    300,
		DownloadTimeout: 5 * time.Second,
		UploadTimeout:   5 * time.Second,
	}
}

func assertWorkDirEmpty(t *testing.T, cfg internal.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir not cleaned up: %d entries left", len(entries))
	}
}

func TestPipelineGenerate(t *testing.T) {
	srv := imageServer(t)
	cfg := testConfig(t)
	enc := &fakeEncoder{probe: 9 * time.Second}
	store := &fakeStorage{}
	p := NewPipeline(cfg, enc, store, logging.Discard())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	images := []model.RawImage{
		{URL: srv.URL + "/uploads/c.jpg"},
		{URL: srv.URL + "/uploads/a.jpg"},
		{URL: srv.URL + "/uploads/a-150x150.jpg"},
		{URL: srv.URL + "/uploads/b.png", Width: intp(1200), Height: intp(800)},
	}

	res := p.Generate(context.Background(), images, "Five-Minute Pancakes!")
	if !res.Completed() {
		t.Fatalf("expected completed, got %+v", res)
	}
	if res.Meta.Duration != 9 || res.Meta.ImageCount != 3 || res.Meta.Format != "1080x1920" {
		t.Errorf("unexpected meta %+v", res.Meta)
	}
	if !res.Meta.Timestamp.Equal(fixed) {
		t.Errorf("unexpected timestamp %v", res.Meta.Timestamp)
	}
	if len(res.Meta.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", res.Meta.Warnings)
	}

	wantName := "five-minute-pancakes-1714564800000.mp4"
	if len(store.names) != 1 || store.names[0] != wantName {
		t.Fatalf("unexpected stored names %v", store.names)
	}
	if res.URL != "https://cdn.test/videos/"+wantName {
		t.Errorf("unexpected url %q", res.URL)
	}

	// 3 renders + 1 concat
	if enc.callCount() != 4 {
		t.Errorf("expected 4 encoder calls, got %d", enc.callCount())
	}
	lines := strings.Split(strings.TrimSpace(enc.manifests[0]), "\n")
	for i, want := range []string{"clip_000.mp4", "clip_001.mp4", "clip_002.mp4"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("concat order broken at %d: %s", i, lines[i])
		}
	}
	for _, call := range enc.calls[:3] {
		in := argAfter(call, "-i")
		if !strings.Contains(in, "img_0") {
			t.Errorf("render input not index named: %s", in)
		}
	}

	assertWorkDirEmpty(t, cfg)
}

func TestPipelineDurationWarning(t *testing.T) {
	srv := imageServer(t)
	cfg := testConfig(t)
	p := NewPipeline(cfg, &fakeEncoder{probe: 4 * time.Second}, &fakeStorage{}, logging.Discard())

	res := p.Generate(context.Background(), []model.RawImage{{URL: srv.URL + "/a.jpg"}, {URL: srv.URL + "/b.jpg"}}, "t")
	if !res.Completed() {
		t.Fatalf("drift must not fail the run: %+v", res)
	}
	if res.Meta.Duration != 6 || len(res.Meta.Warnings) != 1 {
		t.Errorf("expected nominal duration and one warning, got %+v", res.Meta)
	}
}

func TestPipelineFailures(t *testing.T) {
	srv := imageServer(t)

	tests := []struct {
		name   string
		images []model.RawImage
		enc    *fakeEncoder
		store  *fakeStorage
		stage  Stage
	}{
		{
			name:   "nothing selectable",
			images: []model.RawImage{{URL: srv.URL + "/a-150x150.jpg"}},
			enc:    &fakeEncoder{},
			store:  &fakeStorage{},
			stage:  StageSelection,
		},
		{
			name:   "download fails",
			images: []model.RawImage{{URL: srv.URL + "/a.jpg"}, {URL: srv.URL + "/missing.jpg"}},
			enc:    &fakeEncoder{},
			store:  &fakeStorage{},
			stage:  StageDownload,
		},
		{
			name:   "render fails",
			images: []model.RawImage{{URL: srv.URL + "/a.jpg"}},
			enc: &fakeEncoder{fail: func(args []string) error {
				if strings.Contains(strings.Join(args, " "), "boxblur") {
					return errors.New("ffmpeg error: corrupt input")
				}
				return nil
			}},
			store: &fakeStorage{},
			stage: StageRender,
		},
		{
			name:   "storage fails",
			images: []model.RawImage{{URL: srv.URL + "/a.jpg"}},
			enc:    &fakeEncoder{probe: 3 * time.Second},
			store:  &fakeStorage{err: errors.New("bucket gone")},
			stage:  StageStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			p := NewPipeline(cfg, tt.enc, tt.store, logging.Discard())

			res := p.Generate(context.Background(), tt.images, "Title")
			if res.Status != model.VideoStatusError {
				t.Fatalf("expected error status, got %+v", res)
			}
			if !strings.HasPrefix(res.Error, string(tt.stage)+" failed") {
				t.Errorf("expected %s failure, got %q", tt.stage, res.Error)
			}
			if res.URL != "" {
				t.Errorf("failed run must not carry a url")
			}
			assertWorkDirEmpty(t, cfg)
		})
	}
}

func TestPipelineCancelled(t *testing.T) {
	srv := imageServer(t)
	cfg := testConfig(t)
	p := NewPipeline(cfg, &fakeEncoder{}, &fakeStorage{}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.Generate(ctx, []model.RawImage{{URL: srv.URL + "/a.jpg"}}, "t")
	if res.Completed() {
		t.Fatal("expected failure on cancelled context")
	}
	assertWorkDirEmpty(t, cfg)
}
