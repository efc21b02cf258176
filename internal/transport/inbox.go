package transport

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultBuffer = 64

// inbox is a bounded frame queue written by one reader goroutine and drained
// by Recv. A full inbox drops its oldest frame.
type inbox struct {
	mu      sync.Mutex
	frames  chan string
	errs    chan error
	closed  chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func newInbox(size int) *inbox {
	if size <= 0 {
		size = defaultBuffer
	}
	return &inbox{
		frames: make(chan string, size),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

// offer queues frame unless the inbox is closed. close takes the same lock,
// so a frame offered after close is never queued.
func (b *inbox) offer(frame string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.closed:
		return
	default:
	}
	for {
		select {
		case b.frames <- frame:
			return
		default:
		}
		select {
		case <-b.frames:
			b.dropped.Add(1)
		default:
		}
	}
}

// fail records a receive error for the next Recv. Only the latest is kept.
func (b *inbox) fail(err error) {
	select {
	case b.errs <- err:
	default:
	}
}

func (b *inbox) recv(timeout time.Duration) (string, error) {
	if f, ok, err := b.poll(); ok {
		return f, err
	}
	if timeout <= 0 {
		return "", ErrNoData
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-b.frames:
		return f, nil
	case err := <-b.errs:
		return "", err
	case <-b.closed:
		// frames queued before close are still delivered
		if f, ok, err := b.poll(); ok {
			return f, err
		}
		return "", ErrClosed
	case <-timer.C:
		return "", ErrNoData
	}
}

// poll takes a queued frame, then a pending error, without blocking.
func (b *inbox) poll() (string, bool, error) {
	select {
	case f := <-b.frames:
		return f, true, nil
	default:
	}
	select {
	case err := <-b.errs:
		return "", true, err
	default:
	}
	select {
	case <-b.closed:
		return "", true, ErrClosed
	default:
	}
	return "", false, nil
}

func (b *inbox) close() {
	b.once.Do(func() {
		b.mu.Lock()
		close(b.closed)
		b.mu.Unlock()
	})
}

// Dropped counts frames discarded because the inbox was full.
func (b *inbox) Dropped() uint64 {
	return b.dropped.Load()
}
