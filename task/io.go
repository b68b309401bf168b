package task

import (
	"fmt"
	"sync"

	"gokernel/kernelerr"
	"gokernel/klog"
)

// StreamRef is the opaque handle spec.md §6 describes for the standard
// streams: read/write/flush plus an explicit drop.
type StreamRef interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Flush() error
	Close() error
}

// consoleStream routes writes through klog, the only "console" this
// hosted kernel has. There is no real input device to back Stdin in this
// environment, so reads report ErrWouldBlock rather than blocking
// forever or fabricating data.
type consoleStream struct {
	mu     sync.Mutex
	level  klog.Level
	name   string
	closed bool
}

func (s *consoleStream) Write(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("write %s: %w", s.name, kernelerr.ErrBrokenPipe)
	}
	switch s.level {
	case klog.LevelError:
		klog.Errorf("%s", string(buf))
	default:
		klog.Infof("%s", string(buf))
	}
	return len(buf), nil
}

func (s *consoleStream) Read(buf []byte) (int, error) {
	return 0, fmt.Errorf("read %s: %w", s.name, kernelerr.ErrWouldBlock)
}

func (s *consoleStream) Flush() error { return nil }

func (s *consoleStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var (
	stdinRef  StreamRef = &consoleStream{name: "stdin"}
	stdoutRef StreamRef = &consoleStream{name: "stdout", level: klog.LevelInfo}
	stderrRef StreamRef = &consoleStream{name: "stderr", level: klog.LevelError}
)

// Stdin, Stdout, and Stderr return this kernel's standard stream
// handles. They are process-wide, not per-task, matching spec.md §6.
func Stdin() StreamRef  { return stdinRef }
func Stdout() StreamRef { return stdoutRef }
func Stderr() StreamRef { return stderrRef }
