package video

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"article-video-gen/internal"
	"article-video-gen/internal/logging"
	"article-video-gen/internal/model"
)

// Storage publishes a finished video and returns its public URL.
type Storage interface {
	Store(ctx context.Context, data []byte, name string) (string, error)
}

// Pipeline builds one vertical slideshow video from a post's images.
type Pipeline struct {
	cfg       internal.Config
	http      *http.Client
	renderer  *Renderer
	assembler *Assembler
	storage   Storage
	log       *logging.Logger
	now       func() time.Time
}

func NewPipeline(cfg internal.Config, enc Encoder, storage Storage, log *logging.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		http:      &http.Client{},
		renderer:  NewRenderer(enc, cfg.ClipDuration, log),
		assembler: NewAssembler(enc, cfg.ConcatBatchSize, cfg.ClipDuration, log),
		storage:   storage,
		log:       log,
		now:       time.Now,
	}
}

// SetProgress forwards per-clip encoder progress to fn.
func (p *Pipeline) SetProgress(fn ProgressFunc) { p.renderer.Progress = fn }

// Generate runs the whole pipeline. It never returns an error value: any
// failure is reported as a VideoResult with status "error". The run's work
// directory is removed on every path.
func (p *Pipeline) Generate(ctx context.Context, images []model.RawImage, title string) model.VideoResult {
	started := p.now()
	res, err := p.generate(ctx, images, title, started)
	if err != nil {
		p.log.Errorf("video: generation failed for %q: %v", title, err)
		return model.VideoResult{
			Status: model.VideoStatusError,
			Error:  err.Error(),
			Meta:   model.VideoMeta{Format: model.VideoFormat, Timestamp: started},
		}
	}
	return res
}

func (p *Pipeline) generate(ctx context.Context, images []model.RawImage, title string, started time.Time) (model.VideoResult, error) {
	workDir := filepath.Join(p.cfg.WorkDir, fmt.Sprintf("video-%d-%s", started.UnixMilli(), uuid.NewString()[:8]))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return model.VideoResult{}, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			p.log.Warnf("video: cleanup %s: %v", workDir, err)
		}
	}()

	selected, err := SelectImages(images, SelectOptions{MinDimension: p.cfg.MinImageSize})
	if err != nil {
		return model.VideoResult{}, err
	}
	p.log.Infof("video: %q: %d of %d images selected", title, len(selected), len(images))

	imgPaths, err := downloadAll(ctx, p.http, p.cfg.DownloadTimeout, workDir, selected)
	if err != nil {
		return model.VideoResult{}, err
	}
	if p.cfg.VisualDedupe {
		imgPaths = dedupeVisual(imgPaths, p.log)
	}

	clips, err := p.renderAll(ctx, workDir, imgPaths)
	if err != nil {
		return model.VideoResult{}, err
	}

	final := filepath.Join(workDir, "final.mp4")
	measured, err := p.assembler.Assemble(ctx, clips, final)
	if err != nil {
		return model.VideoResult{}, err
	}

	data, err := os.ReadFile(final)
	if err != nil {
		return model.VideoResult{}, &Error{Stage: StageAssembly, Err: err}
	}

	name := fmt.Sprintf("%s-%d.mp4", slugify(title), started.UnixMilli())
	url, err := p.store(ctx, data, name)
	if err != nil {
		return model.VideoResult{}, &Error{Stage: StageStorage, Err: err}
	}
	p.log.Infof("video: stored %s (%d bytes) -> %s", name, len(data), url)

	nominal := p.cfg.ClipDuration * time.Duration(len(clips))
	meta := model.VideoMeta{
		Duration:   wholeSeconds(nominal),
		ImageCount: len(clips),
		Format:     model.VideoFormat,
		Timestamp:  started,
	}
	if w := driftWarning("assembled", nominal, measured); w != "" {
		meta.Warnings = append(meta.Warnings, w)
	}
	return model.VideoResult{Status: model.VideoStatusCompleted, URL: url, Meta: meta}, nil
}

func (p *Pipeline) renderAll(ctx context.Context, dir string, imgPaths []string) ([]string, error) {
	clips := make([]string, len(imgPaths))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range imgPaths {
		clips[i] = filepath.Join(dir, fmt.Sprintf("clip_%03d.mp4", i))
		g.Go(func() error {
			_, err := p.renderer.Render(gctx, img, clips[i])
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stageErr(StageRender, err)
	}
	return clips, nil
}

func (p *Pipeline) store(ctx context.Context, data []byte, name string) (string, error) {
	if p.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.UploadTimeout)
		defer cancel()
	}
	return p.storage.Store(ctx, data, name)
}
