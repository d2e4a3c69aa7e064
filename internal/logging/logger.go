package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	errMu sync.Mutex
	errW  io.WriteCloser
}

// New logs INFO to stdout and WARN/ERROR to stdout plus errorsPath.
// The errors file is truncated on startup.
func New(errorsPath string) (*Logger, error) {
	if err := os.Truncate(errorsPath, 0); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	f, err := os.OpenFile(errorsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l := NewWriters(os.Stdout, io.MultiWriter(os.Stdout, f))
	l.errW = f
	return l, nil
}

// NewWriters builds a logger over arbitrary writers; used by tests.
func NewWriters(info, errs io.Writer) *Logger {
	return &Logger{
		info: log.New(info, "INFO ", log.LstdFlags|log.Lmicroseconds),
		warn: log.New(errs, "WARN ", log.LstdFlags|log.Lmicroseconds),
		err:  log.New(errs, "ERROR ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
	}
}

// Discard drops everything.
func Discard() *Logger {
	return NewWriters(io.Discard, io.Discard)
}

func (l *Logger) Close() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	if l.errW != nil {
		return l.errW.Close()
	}
	return nil
}

func (l *Logger) Infof(format string, args ...any) {
	l.info.Printf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	l.warn.Printf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	l.err.Output(2, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(err error) {
	if err == nil {
		return
	}
	l.Errorf("%v", err)
}
