package bot

import (
	"bytes"
	"io"
	"os"
	"strings"
)

const tailChunk = 4096

// tailLines returns up to n trailing lines of path, oldest first. It reads
// backwards from the end in chunks, so a large errors.log costs only the
// bytes it shows.
func tailLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var buf []byte
	off := info.Size()
	// n lines need n separators before them, plus a possible trailing one
	for off > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		size := int64(tailChunk)
		if off < size {
			size = off
		}
		off -= size
		chunk := make([]byte, size)
		if _, err := f.ReadAt(chunk, off); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(chunk, buf...)
	}

	text := strings.TrimSuffix(string(buf), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
