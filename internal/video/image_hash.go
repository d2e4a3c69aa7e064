package video

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/vitali-fedulov/imagehash2"
	"github.com/vitali-fedulov/images4"

	"article-video-gen/internal/logging"
)

const (
	hashNumBuckets = 4
	hashEpsilon    = 0.25
)

// dedupeVisual drops images that look like an earlier one in the list, e.g.
// the same photo uploaded twice under different names. Images that cannot be
// decoded are kept.
func dedupeVisual(paths []string, log *logging.Logger) []string {
	type seen struct {
		icon   images4.IconT
		hashes []uint64
	}
	var kept []seen
	out := make([]string, 0, len(paths))

	for _, p := range paths {
		icon, err := loadIcon(p)
		if err != nil {
			log.Warnf("video: visual dedupe: %v (keeping)", err)
			out = append(out, p)
			continue
		}
		central := imagehash2.CentralHash9(icon, hashEpsilon, hashNumBuckets)

		dup := false
		for _, k := range kept {
			// hash match is only a pre-filter; confirm with the full comparison
			for _, h := range k.hashes {
				if h == central && images4.Similar(icon, k.icon) {
					dup = true
					break
				}
			}
			if dup {
				break
			}
		}
		if dup {
			log.Infof("video: visual duplicate dropped: %s", p)
			continue
		}

		kept = append(kept, seen{icon: icon, hashes: imagehash2.HashSet9(icon, hashEpsilon, hashNumBuckets)})
		out = append(out, p)
	}
	return out
}

func loadIcon(path string) (images4.IconT, error) {
	f, err := os.Open(path)
	if err != nil {
		return images4.IconT{}, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return images4.IconT{}, err
	}
	return images4.Icon(img), nil
}

type ImageComparison struct {
	CentralA, CentralB uint64
	HashMatch          bool // CentralB falls in A's hash set
	Similar            bool // images4 full comparison
}

// Duplicate reports whether visual dedupe would drop the second image.
func (c ImageComparison) Duplicate() bool { return c.HashMatch && c.Similar }

// CompareImages runs the visual dedupe check on two files, a first.
func CompareImages(a, b string) (ImageComparison, error) {
	iconA, err := loadIcon(a)
	if err != nil {
		return ImageComparison{}, err
	}
	iconB, err := loadIcon(b)
	if err != nil {
		return ImageComparison{}, err
	}
	c := ImageComparison{
		CentralA: imagehash2.CentralHash9(iconA, hashEpsilon, hashNumBuckets),
		CentralB: imagehash2.CentralHash9(iconB, hashEpsilon, hashNumBuckets),
		Similar:  images4.Similar(iconA, iconB),
	}
	for _, h := range imagehash2.HashSet9(iconA, hashEpsilon, hashNumBuckets) {
		if h == c.CentralB {
			c.HashMatch = true
			break
		}
	}
	return c, nil
}
