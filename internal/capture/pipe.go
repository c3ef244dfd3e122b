package capture

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// Pipe is a real file descriptor whose output is copied into a writer.
// Executed code that insists on an *os.File, such as os.Stdout, gets the
// write end; everything it writes lands in the destination.
//
// Copying is asynchronous. Flush blocks until every byte written before it
// has reached the destination.
type Pipe struct {
	r, w   *os.File
	dst    io.Writer
	marker []byte

	flushed chan struct{}
	done    chan struct{}
}

// NewPipe opens a pipe draining into dst.
func NewPipe(dst io.Writer) (*Pipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("opening capture pipe: %w", err)
	}
	p := &Pipe{
		r:       r,
		w:       w,
		dst:     dst,
		marker:  []byte("\x00flush:" + uuid.NewString() + "\x00"),
		flushed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.copy()
	return p, nil
}

// File returns the write end of the pipe.
func (p *Pipe) File() *os.File {
	return p.w
}

// Flush waits until everything written so far has been copied. It returns
// immediately once the pipe is closed.
func (p *Pipe) Flush() {
	if _, err := p.w.Write(p.marker); err != nil {
		return
	}
	select {
	case <-p.flushed:
	case <-p.done:
	}
}

// Close closes the write end and waits for the copier to drain what is left.
func (p *Pipe) Close() error {
	err := p.w.Close()
	<-p.done
	if rerr := p.r.Close(); err == nil {
		err = rerr
	}
	return err
}

func (p *Pipe) copy() {
	defer close(p.done)

	buf := make([]byte, 32<<10)
	var pending []byte
	for {
		n, err := p.r.Read(buf)
		if n > 0 {
			pending = p.forward(append(pending, buf[:n]...))
		}
		if err != nil {
			if len(pending) > 0 {
				p.dst.Write(pending)
			}
			return
		}
	}
}

// forward writes b to the destination, answering every flush marker found in
// it. A tail that could be the start of a marker is held back and returned.
func (p *Pipe) forward(b []byte) []byte {
	for {
		i := bytes.Index(b, p.marker)
		if i < 0 {
			break
		}
		if i > 0 {
			p.dst.Write(b[:i])
		}
		b = b[i+len(p.marker):]
		p.flushed <- struct{}{}
	}

	keep := min(len(b), len(p.marker)-1)
	if n := len(b) - keep; n > 0 {
		p.dst.Write(b[:n])
	}
	return append([]byte(nil), b[len(b)-keep:]...)
}
