// Package klog is the kernel's leveled logger. Before the heap is up it
// writes into a fixed-capacity ring buffer (no allocation); once the real
// console is attached via SetSink, buffered lines are flushed and further
// writes go straight through. This mirrors gopher-os's split between
// kfmt/early (allocation-free, pre-heap) and the real console driver.
package klog

import (
	"fmt"
	"sync"

	"golang.org/x/text/width"
)

// Level orders log severity, least to most urgent.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// ringCapacity bounds the pre-heap log buffer; sized generously enough to
// hold boot-time diagnostics without ever needing to grow.
const ringCapacity = 256

// consoleWidth is the fixed column width of the early boot console, used
// to decide where buffered lines wrap before a real framebuffer exists.
const consoleWidth = 80

// Sink receives fully formatted log lines.
type Sink interface {
	WriteLine(line string)
}

type logger struct {
	mu    sync.Mutex
	min   Level
	sink  Sink
	ring  [ringCapacity]string
	head  int
	count int
}

var global = &logger{min: LevelInfo}

// SetLevel changes the minimum level that is emitted.
func SetLevel(min Level) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.min = min
}

// SetSink attaches the real console and flushes anything buffered so far.
// Passing nil reverts to buffering only (useful in tests).
func SetSink(sink Sink) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.sink = sink
	if sink == nil {
		return
	}
	for i := 0; i < global.count; i++ {
		idx := (global.head - global.count + i + ringCapacity) % ringCapacity
		sink.WriteLine(global.ring[idx])
	}
	global.count = 0
	global.head = 0
}

func (l *logger) emit(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.min {
		return
	}
	line := wrap(fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...)))
	if l.sink != nil {
		l.sink.WriteLine(line)
		return
	}
	l.ring[l.head] = line
	l.head = (l.head + 1) % ringCapacity
	if l.count < ringCapacity {
		l.count++
	}
}

// wrap inserts a newline once the line's display width would exceed the
// early console's column count, accounting for double-width runes the way
// x/text/width classifies them.
func wrap(line string) string {
	if widthOf(line) <= consoleWidth {
		return line
	}
	var out []rune
	col := 0
	for _, r := range line {
		w := 1
		if width.LookupRune(r).Kind() == width.EastAsianWide {
			w = 2
		}
		if col+w > consoleWidth {
			out = append(out, '\n')
			col = 0
		}
		out = append(out, r)
		col += w
	}
	return string(out)
}

func widthOf(s string) int {
	n := 0
	for _, r := range s {
		if width.LookupRune(r).Kind() == width.EastAsianWide {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func Debugf(format string, args ...interface{}) { global.emit(LevelDebug, format, args...) }
func Infof(format string, args ...interface{})  { global.emit(LevelInfo, format, args...) }
func Warnf(format string, args ...interface{})  { global.emit(LevelWarn, format, args...) }
func Errorf(format string, args ...interface{}) { global.emit(LevelError, format, args...) }

// Buffered reports how many lines are currently held in the pre-heap ring
// buffer, so a caller can confirm nothing was lost before SetSink was
// called.
func Buffered() int {
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.count
}
