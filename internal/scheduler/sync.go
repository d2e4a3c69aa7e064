package scheduler

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"article-video-gen/internal/logging"
	"article-video-gen/internal/model"
	"article-video-gen/internal/s3"
)

const TriggerSync = "sync"

// ObjectStore is what the index sync needs from the bucket.
type ObjectStore interface {
	JSONStore
	List(ctx context.Context, prefix string) ([]s3.ObjectInfo, error)
	PublicURL(key string) string
}

type SyncReport struct {
	Before  int
	Removed int // records whose object is gone, plus duplicate URLs
	Added   int // objects with no record
	After   int
}

// SyncVideosIndex reconciles the videos index with the objects under prefix.
// Records pointing at missing objects are dropped, duplicate URLs collapse to
// the oldest record, and stray videos get a record built from their key.
func SyncVideosIndex(ctx context.Context, store ObjectStore, indexKey, prefix string, log *logging.Logger) (SyncReport, error) {
	var idx model.VideosIndex
	if _, err := store.ReadJSON(ctx, indexKey, &idx); err != nil {
		return SyncReport{}, fmt.Errorf("read %s: %w", indexKey, err)
	}
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return SyncReport{}, fmt.Errorf("list %s: %w", prefix, err)
	}

	videos := lo.Filter(objects, func(o s3.ObjectInfo, _ int) bool {
		return strings.EqualFold(path.Ext(o.Key), ".mp4")
	})
	byURL := lo.SliceToMap(videos, func(o s3.ObjectInfo) (string, s3.ObjectInfo) {
		return store.PublicURL(o.Key), o
	})

	rep := SyncReport{Before: len(idx.Items)}

	slices.SortStableFunc(idx.Items, func(a, b model.VideoRecord) int { return a.CreatedAt.Compare(b.CreatedAt) })
	seen := make(map[string]bool, len(idx.Items))
	kept := make([]model.VideoRecord, 0, len(idx.Items))
	for _, rec := range idx.Items {
		if _, ok := byURL[rec.URL]; !ok || seen[rec.URL] {
			log.Infof("sync: dropping record for post %d (%s)", rec.PostID, rec.URL)
			rep.Removed++
			continue
		}
		seen[rec.URL] = true
		kept = append(kept, rec)
	}

	for _, o := range videos {
		u := store.PublicURL(o.Key)
		if seen[u] {
			continue
		}
		kept = append(kept, recordFromObject(o, u))
		seen[u] = true
		rep.Added++
		log.Infof("sync: added record for %s", o.Key)
	}

	slices.SortStableFunc(kept, func(a, b model.VideoRecord) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if len(kept) > videosHistoryLimit {
		kept = kept[len(kept)-videosHistoryLimit:]
	}
	rep.After = len(kept)

	if rep.Removed == 0 && rep.Added == 0 {
		return rep, nil
	}
	idx.Items = kept
	idx.UpdatedAt = time.Now()
	if err := store.WriteJSON(ctx, indexKey, &idx); err != nil {
		return rep, fmt.Errorf("write %s: %w", indexKey, err)
	}
	return rep, nil
}

// recordFromObject rebuilds what it can from a "<slug>-<unixms>.mp4" key.
func recordFromObject(o s3.ObjectInfo, url string) model.VideoRecord {
	base := strings.TrimSuffix(path.Base(o.Key), path.Ext(o.Key))
	rec := model.VideoRecord{
		Title:   strings.ReplaceAll(base, "-", " "),
		URL:     url,
		Trigger: TriggerSync,
		Meta:    model.VideoMeta{Format: model.VideoFormat},
	}

	if i := strings.LastIndexByte(base, '-'); i > 0 {
		if ms, err := strconv.ParseInt(base[i+1:], 10, 64); err == nil && ms > 0 {
			rec.Title = strings.ReplaceAll(base[:i], "-", " ")
			rec.CreatedAt = time.UnixMilli(ms).UTC()
		}
	}
	if rec.CreatedAt.IsZero() && o.LastModified != nil {
		if t, err := time.Parse(time.RFC3339, *o.LastModified); err == nil {
			rec.CreatedAt = t
		}
	}
	rec.Meta.Timestamp = rec.CreatedAt
	return rec
}
