package video

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"article-video-gen/internal/logging"
)

func TestRendererArgs(t *testing.T) {
	enc := &fakeEncoder{probe: 3 * time.Second}
	r := NewRenderer(enc, 3*time.Second, logging.Discard())

	out := filepath.Join(t.TempDir(), "clip_000.mp4")
	got, err := r.Render(context.Background(), "/tmp/img_000.jpg", out)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != 3*time.Second {
		t.Errorf("expected probed 3s, got %v", got)
	}

	args := strings.Join(enc.calls[0], " ")
	for _, want := range []string{
		"-loop 1",
		"-i /tmp/img_000.jpg",
		"split",
		"force_original_aspect_ratio=increase",
		"crop=1080:1920",
		"boxblur=20:5",
		"force_original_aspect_ratio=decrease",
		"overlay=(W-w)/2:(H-h)/2",
		"-pix_fmt yuv420p",
		"-preset ultrafast",
		"-r 30",
		"-t 3.000",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q:\n%s", want, args)
		}
	}
	if lastMP4(enc.calls[0]) != out {
		t.Errorf("output path not last mp4 arg: %s", args)
	}
}

func TestRendererFailureCarriesStderr(t *testing.T) {
	enc := &fakeEncoder{fail: func([]string) error { return errors.New("ffmpeg error: Invalid data found") }}
	r := NewRenderer(enc, 3*time.Second, logging.Discard())

	_, err := r.Render(context.Background(), "broken.jpg", filepath.Join(t.TempDir(), "c.mp4"))
	if StageOf(err) != StageRender {
		t.Fatalf("expected render stage, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("stderr lost: %v", err)
	}
}

func TestRendererProbeFailureIsNotFatal(t *testing.T) {
	enc := &fakeEncoder{probeErr: errors.New("no ffprobe")}
	r := NewRenderer(enc, 3*time.Second, logging.Discard())

	got, err := r.Render(context.Background(), "a.jpg", filepath.Join(t.TempDir(), "c.mp4"))
	if err != nil {
		t.Fatalf("probe failure must not fail render: %v", err)
	}
	if got != 3*time.Second {
		t.Errorf("expected nominal duration, got %v", got)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestRendererWithFFmpeg(t *testing.T) {
	skipIfNoFFmpeg(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "img_000.png")
	writePNG(t, src, 640, 480)

	r := NewRenderer(NewExecEncoder(0, time.Minute, logging.Discard()), 3*time.Second, logging.Discard())
	got, err := r.Render(context.Background(), src, filepath.Join(dir, "clip_000.mp4"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if d := got - 3*time.Second; d > 500*time.Millisecond || d < -500*time.Millisecond {
		t.Errorf("unexpected clip duration %v", got)
	}
}
