package content

import (
	"context"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"

	"article-video-gen/internal/logging"
	"article-video-gen/internal/model"
)

// EmbedResolver looks up title, author and thumbnails for embedded YouTube
// videos. Lookup failures degrade to a bare reference.
type EmbedResolver struct {
	yt      *youtube.Client
	log     *logging.Logger
	timeout time.Duration
}

func NewEmbedResolver(log *logging.Logger) *EmbedResolver {
	return &EmbedResolver{yt: &youtube.Client{}, log: log, timeout: 15 * time.Second}
}

func (r *EmbedResolver) Resolve(ctx context.Context, ids []string) []model.EmbeddedVideo {
	out := make([]model.EmbeddedVideo, 0, len(ids))
	for _, id := range ids {
		v := model.EmbeddedVideo{
			Provider: "youtube",
			ID:       id,
			URL:      "https://www.youtube.com/watch?v=" + id,
		}

		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		meta, err := r.yt.GetVideoContext(lookupCtx, id)
		cancel()
		if err != nil {
			r.log.Warnf("content: youtube lookup %s failed: %v", id, err)
			out = append(out, v)
			continue
		}

		v.Title = meta.Title
		v.Author = meta.Author
		v.DurationS = meta.Duration.Seconds()
		v.Thumbnails = lo.Map(meta.Thumbnails, func(t youtube.Thumbnail, _ int) string { return t.URL })
		out = append(out, v)
	}
	return out
}
