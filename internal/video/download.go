package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"article-video-gen/internal/model"
)

// maxImageBytes guards against runaway responses.
const maxImageBytes = 50 << 20

// downloadAll fetches every image concurrently into dir. The returned paths
// follow the order of images regardless of completion order.
func downloadAll(ctx context.Context, client *http.Client, timeout time.Duration, dir string, images []model.RawImage) ([]string, error) {
	paths := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			p, err := downloadOne(gctx, client, timeout, dir, i, img.URL)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &Error{Stage: StageDownload, Err: err}
	}
	return paths, nil
}

func downloadOne(ctx context.Context, client *http.Client, timeout time.Duration, dir string, idx int, rawURL string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("image %d: %w", idx, err)
	}
	req.Header.Set("User-Agent", "article-video-gen/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image %d: %w", idx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image %d: http %d for %s", idx, resp.StatusCode, rawURL)
	}

	p := filepath.Join(dir, fmt.Sprintf("img_%03d%s", idx, imageExt(resp.Header.Get("Content-Type"), rawURL)))
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, maxImageBytes))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("image %d: %w", idx, err)
	}
	if n == 0 {
		return "", fmt.Errorf("image %d: empty body from %s", idx, rawURL)
	}
	return p, nil
}

func imageExt(contentType, rawURL string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ".jpg"
}
