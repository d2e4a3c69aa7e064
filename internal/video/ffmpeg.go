package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"article-video-gen/internal/logging"
)

// Progress is one report from a running encode.
type Progress struct {
	OutTime time.Duration
	Speed   string
	Done    bool
}

type ProgressFunc func(Progress)

// Encoder runs the external encoder and prober.
type Encoder interface {
	// Encode runs ffmpeg with args. progress may be nil.
	Encode(ctx context.Context, args []string, progress ProgressFunc) error
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// ExecEncoder shells out to ffmpeg/ffprobe. A semaphore caps the number of
// concurrent processes; maxProcs <= 0 means no cap.
type ExecEncoder struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration

	sem chan struct{}
	log *logging.Logger
}

func NewExecEncoder(maxProcs int, timeout time.Duration, log *logging.Logger) *ExecEncoder {
	e := &ExecEncoder{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Timeout:     timeout,
		log:         log,
	}
	if maxProcs > 0 {
		e.sem = make(chan struct{}, maxProcs)
	}
	return e
}

func (e *ExecEncoder) acquire(ctx context.Context) (func(), error) {
	if e.sem == nil {
		return func() {}, nil
	}
	select {
	case e.sem <- struct{}{}:
		return func() { <-e.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *ExecEncoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Timeout)
}

func (e *ExecEncoder) Encode(ctx context.Context, args []string, progress ProgressFunc) error {
	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	full := []string{"-hide_banner", "-loglevel", "error"}
	if progress != nil {
		full = append(full, "-nostats", "-progress", "pipe:1")
	}
	full = append(full, args...)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.FFmpegPath, full...)
	cmd.Stderr = &stderr

	var stdout io.ReadCloser
	if progress != nil {
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("ffmpeg stdout: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	if stdout != nil {
		readProgress(stdout, progress)
	}

	if err := cmd.Wait(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("ffmpeg timed out after %s", e.Timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		e.log.Errorf("[FFMPEG] ffmpeg failed: %s", msg)
		return fmt.Errorf("ffmpeg error: %s", msg)
	}
	return nil
}

// readProgress consumes ffmpeg's key=value progress stream until EOF.
func readProgress(r io.Reader, fn ProgressFunc) {
	var cur Progress
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// both keys carry microseconds
			if us, err := strconv.ParseInt(val, 10, 64); err == nil {
				cur.OutTime = time.Duration(us) * time.Microsecond
			}
		case "speed":
			cur.Speed = val
		case "progress":
			cur.Done = val == "end"
			fn(cur)
		}
	}
}

// Probe returns the container duration reported by ffprobe.
func (e *ExecEncoder) Probe(ctx context.Context, path string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.FFprobePath, "-v", "error", "-show_entries", "format=duration", "-of", "json", path)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %v: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(out []byte) (time.Duration, error) {
	d := gjson.GetBytes(out, "format.duration")
	if !d.Exists() {
		return 0, errors.New("ffprobe: no duration in output")
	}
	secs, err := strconv.ParseFloat(d.String(), 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("ffprobe: bad duration %q", d.String())
	}
	return time.Duration(secs * float64(time.Second)), nil
}
