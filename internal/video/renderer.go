package video

import (
	"context"
	"fmt"
	"strconv"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"article-video-gen/internal/logging"
)

const (
	frameWidth  = 1080
	frameHeight = 1920
	frameRate   = 30
)

// Renderer turns one still image into a fixed-length vertical clip: a blurred
// cover-scaled copy fills the frame and the fit-scaled original sits centered
// on top.
type Renderer struct {
	enc      Encoder
	log      *logging.Logger
	duration time.Duration

	// Progress, when set, receives encoder progress for every clip.
	Progress ProgressFunc
}

func NewRenderer(enc Encoder, clipDuration time.Duration, log *logging.Logger) *Renderer {
	return &Renderer{enc: enc, log: log, duration: clipDuration}
}

func (r *Renderer) args(imagePath, outputPath string) []string {
	size := fmt.Sprintf("%d:%d", frameWidth, frameHeight)
	split := ffmpeg.Input(imagePath, ffmpeg.KwArgs{"loop": "1"}).Split()

	background := split.Get("0").
		Filter("scale", ffmpeg.Args{size}, ffmpeg.KwArgs{"force_original_aspect_ratio": "increase"}).
		Filter("crop", ffmpeg.Args{size}).
		Filter("boxblur", ffmpeg.Args{"20:5"})
	foreground := split.Get("1").
		Filter("scale", ffmpeg.Args{size}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"})

	return ffmpeg.Filter([]*ffmpeg.Stream{background, foreground}, "overlay", ffmpeg.Args{"(W-w)/2:(H-h)/2"}).
		Filter("setsar", ffmpeg.Args{"1"}).
		Output(outputPath, ffmpeg.KwArgs{
			"t":       fmt.Sprintf("%.3f", r.duration.Seconds()),
			"r":       strconv.Itoa(frameRate),
			"c:v":     "libx264",
			"preset":  "ultrafast",
			"tune":    "stillimage",
			"pix_fmt": "yuv420p",
		}).
		OverWriteOutput().
		GetArgs()
}

// Render encodes imagePath into a clip at outputPath and returns the probed
// duration. Drift from the requested duration is logged, never returned.
func (r *Renderer) Render(ctx context.Context, imagePath, outputPath string) (time.Duration, error) {
	if err := r.enc.Encode(ctx, r.args(imagePath, outputPath), r.Progress); err != nil {
		return 0, &Error{Stage: StageRender, Err: fmt.Errorf("%s: %w", imagePath, err)}
	}

	got, err := r.enc.Probe(ctx, outputPath)
	if err != nil {
		r.log.Warnf("video: probe clip %s: %v", outputPath, err)
		return r.duration, nil
	}
	if w := driftWarning("clip", r.duration, got); w != "" {
		r.log.Warnf("video: %s (%s)", w, outputPath)
	}
	return got, nil
}
