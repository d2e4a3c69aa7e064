package video

import (
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/samber/lo"

	"article-video-gen/internal/model"
)

// thumbnailMarkers identify resized derivatives WordPress writes next to the
// original upload.
var thumbnailMarkers = []string{"150x150", "300x", "-150x", "-300x", "-thumbnail"}

type SelectOptions struct {
	// Images with a known width or height at or below this are dropped.
	MinDimension int
}

// SelectImages turns a post's raw image list into the ordered sequence the
// video is built from: unique by URL (first wins), large enough, not a
// thumbnail, sorted by file name.
func SelectImages(images []model.RawImage, opts SelectOptions) ([]model.RawImage, error) {
	if opts.MinDimension <= 0 {
		opts.MinDimension = 300
	}

	unique := lo.UniqBy(images, func(img model.RawImage) string { return img.URL })
	eligible := lo.Filter(unique, func(img model.RawImage, _ int) bool {
		return img.URL != "" && bigEnough(img, opts.MinDimension) && !isThumbnail(img.URL)
	})
	if len(eligible) == 0 {
		return nil, &Error{Stage: StageSelection, Err: ErrNoValidImages}
	}

	slices.SortStableFunc(eligible, func(a, b model.RawImage) int {
		return strings.Compare(lastSegment(a.URL), lastSegment(b.URL))
	})
	return eligible, nil
}

func bigEnough(img model.RawImage, minDim int) bool {
	if img.Width != nil && *img.Width <= minDim {
		return false
	}
	if img.Height != nil && *img.Height <= minDim {
		return false
	}
	return true
}

func isThumbnail(u string) bool {
	return lo.ContainsBy(thumbnailMarkers, func(m string) bool { return strings.Contains(u, m) })
}

func lastSegment(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	return path.Base(p)
}
