package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// expecter reads the switch output in the background and lets the
// caller block until the accumulated output ends with a given marker.
type expecter struct {
	w io.Writer

	chunks chan []byte
	done   chan struct{}
	// only read after done is closed
	err error

	stopOnce sync.Once
	stopc    chan struct{}

	buf []byte
}

func newExpecter(r io.Reader, w io.Writer) *expecter {
	e := &expecter{
		w:      w,
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
		stopc:  make(chan struct{}),
	}
	go e.pump(r)
	return e
}

func (e *expecter) pump(r io.Reader) {
	defer close(e.done)
	for {
		b := make([]byte, 4096)
		n, err := r.Read(b)
		if n > 0 {
			select {
			case e.chunks <- b[:n]:
			case <-e.stopc:
				e.err = ErrClosed
				return
			}
		}
		if err != nil {
			e.err = err
			return
		}
	}
}

func (e *expecter) stop() {
	e.stopOnce.Do(func() {
		close(e.stopc)
	})
}

// readUntil returns everything read so far once the output, ignoring
// trailing whitespace, ends with the marker. On error the partial output
// stays buffered so a later call can resume from it.
func (e *expecter) readUntil(ctx context.Context, marker string, timeout time.Duration) (string, error) {
	marker = strings.TrimSpace(marker)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if e.matched(marker) {
			out := string(e.buf)
			e.buf = e.buf[:0]
			return out, nil
		}

		select {
		case b := <-e.chunks:
			e.buf = append(e.buf, b...)

		case <-e.done:
			// the pump sends every chunk before it exits
			e.drain()
			if e.matched(marker) {
				continue
			}
			if e.err == nil || e.err == io.EOF {
				return string(e.buf), ErrClosed
			}
			return string(e.buf), fmt.Errorf("%w: %v", ErrClosed, e.err)

		case <-e.stopc:
			return string(e.buf), ErrClosed

		case <-ctx.Done():
			return string(e.buf), ctx.Err()

		case <-timer.C:
			return string(e.buf), fmt.Errorf("%w %q after %s", ErrTimeout, marker, timeout)
		}
	}
}

func (e *expecter) drain() {
	for {
		select {
		case b := <-e.chunks:
			e.buf = append(e.buf, b...)
		default:
			return
		}
	}
}

func (e *expecter) matched(marker string) bool {
	if len(e.buf) == 0 {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(string(e.buf), " \t\r\n\x00"), marker)
}
