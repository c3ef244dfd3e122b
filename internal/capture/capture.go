// Package capture provides in-memory output sinks that stand in for the
// standard output and error streams of executed code.
package capture

import (
	"io"
	"strings"
	"sync"
)

// Buffer is an append-only sink. Nothing written to it reaches a real
// output device; the content is only available through Get.
type Buffer struct {
	mu sync.Mutex
	b  strings.Builder
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Write appends p to the buffer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// WriteString appends s to the buffer.
func (b *Buffer) WriteString(s string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.WriteString(s)
}

// Get returns everything written so far.
func (b *Buffer) Get() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Switch is a writer that forwards to a replaceable destination. The
// interpreter holds a Switch for the lifetime of the process while the
// destination is swapped for a fresh Buffer on every execution.
type Switch struct {
	mu  sync.Mutex
	dst io.Writer
}

// NewSwitch returns a Switch that discards everything until Set is called.
func NewSwitch() *Switch {
	return &Switch{dst: io.Discard}
}

// Set replaces the destination. A nil writer discards output.
func (s *Switch) Set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	s.dst = w
}

// Write forwards p to the current destination.
func (s *Switch) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dst.Write(p)
}
