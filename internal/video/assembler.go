package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"article-video-gen/internal/logging"
)

// Assembler joins clips with the concat demuxer without re-encoding. Long
// lists are joined in batches first so no single pass holds too many inputs
// open.
type Assembler struct {
	enc          Encoder
	log          *logging.Logger
	batchSize    int
	clipDuration time.Duration
}

func NewAssembler(enc Encoder, batchSize int, clipDuration time.Duration, log *logging.Logger) *Assembler {
	if batchSize < 2 {
		batchSize = 5
	}
	return &Assembler{enc: enc, log: log, batchSize: batchSize, clipDuration: clipDuration}
}

// Assemble concatenates clipPaths in order into outputPath and returns the
// probed duration of the result.
func (a *Assembler) Assemble(ctx context.Context, clipPaths []string, outputPath string) (time.Duration, error) {
	if len(clipPaths) == 0 {
		return 0, &Error{Stage: StageAssembly, Err: errors.New("no clips")}
	}

	if len(clipPaths) <= a.batchSize {
		if err := a.concat(ctx, clipPaths, outputPath); err != nil {
			return 0, &Error{Stage: StageAssembly, Err: err}
		}
		return a.verify(ctx, outputPath, len(clipPaths)), nil
	}

	batches := lo.Chunk(clipPaths, a.batchSize)
	a.log.Infof("video: assembling %d clips in %d batches", len(clipPaths), len(batches))

	dir := filepath.Dir(outputPath)
	base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	intermediates := make([]string, 0, len(batches))
	defer func() {
		for _, p := range intermediates {
			os.Remove(p)
		}
	}()

	for i, batch := range batches {
		out := filepath.Join(dir, fmt.Sprintf("%s_batch_%03d.mp4", base, i))
		intermediates = append(intermediates, out)
		if err := a.concat(ctx, batch, out); err != nil {
			return 0, &Error{Stage: StageAssembly, Err: fmt.Errorf("batch %d: %w", i, err)}
		}
	}
	if err := a.concat(ctx, intermediates, outputPath); err != nil {
		return 0, &Error{Stage: StageAssembly, Err: fmt.Errorf("final pass: %w", err)}
	}
	return a.verify(ctx, outputPath, len(clipPaths)), nil
}

func (a *Assembler) concat(ctx context.Context, inputs []string, outputPath string) error {
	manifest := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_list.txt"
	defer os.Remove(manifest)
	if err := writeManifest(manifest, inputs); err != nil {
		return err
	}

	args := ffmpeg.Input(manifest, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).
		Output(outputPath, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput().
		GetArgs()
	return a.enc.Encode(ctx, args, nil)
}

func writeManifest(path string, inputs []string) error {
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return err
		}
		b.WriteString("file '" + strings.ReplaceAll(abs, "'", `'\''`) + "'\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat manifest: %w", err)
	}
	return nil
}

func (a *Assembler) verify(ctx context.Context, outputPath string, clips int) time.Duration {
	expected := a.clipDuration * time.Duration(clips)
	got, err := a.enc.Probe(ctx, outputPath)
	if err != nil {
		a.log.Warnf("video: probe %s: %v", outputPath, err)
		return expected
	}
	if w := driftWarning("assembled", expected, got); w != "" {
		a.log.Warnf("video: %s", w)
	} else {
		a.log.Infof("video: assembled %d clips, %.2fs", clips, got.Seconds())
	}
	return got
}
