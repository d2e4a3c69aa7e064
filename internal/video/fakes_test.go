package video

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"
)

// fakeEncoder writes a placeholder file to the output path of every call and
// records the args and any concat manifest it was given.
type fakeEncoder struct {
	mu        sync.Mutex
	calls     [][]string
	manifests []string

	fail     func(args []string) error
	probe    time.Duration
	probeErr error
}

func (f *fakeEncoder) Encode(_ context.Context, args []string, progress ProgressFunc) error {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	if m := argAfter(args, "-i"); strings.HasSuffix(m, ".txt") {
		b, _ := os.ReadFile(m)
		f.manifests = append(f.manifests, string(b))
	}
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(args); err != nil {
			return err
		}
	}
	out := lastMP4(args)
	if out == "" {
		return errors.New("no output in args")
	}
	if progress != nil {
		progress(Progress{OutTime: time.Second, Done: true})
	}
	return os.WriteFile(out, []byte("fake-mp4"), 0o644)
}

func (f *fakeEncoder) Probe(context.Context, string) (time.Duration, error) {
	return f.probe, f.probeErr
}

func (f *fakeEncoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func lastMP4(args []string) string {
	for i := len(args) - 1; i >= 0; i-- {
		if strings.HasSuffix(args[i], ".mp4") {
			return args[i]
		}
	}
	return ""
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
