package transport

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Loopback is an in-process bus. Subscribers receive every frame that starts
// with their subscription prefix, like a ZeroMQ SUB socket.
type Loopback struct {
	mu     sync.RWMutex
	subs   map[*loopbackSub]struct{}
	closed bool
}

func NewLoopback() *Loopback {
	return &Loopback{subs: make(map[*loopbackSub]struct{})}
}

func (l *Loopback) Publisher() Publisher {
	return &loopbackPub{bus: l}
}

func (l *Loopback) Subscribe(prefix string, buffer int) Subscriber {
	s := &loopbackSub{bus: l, prefix: prefix, inbox: newInbox(buffer)}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		s.inbox.close()
		return s
	}
	l.subs[s] = struct{}{}
	return s
}

func (l *Loopback) publish(frame string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	for s := range l.subs {
		if strings.HasPrefix(frame, s.prefix) {
			s.inbox.offer(frame)
		}
	}
	return nil
}

// Close closes the bus and every subscriber on it.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for s := range l.subs {
		s.inbox.close()
		delete(l.subs, s)
	}
	return nil
}

type loopbackPub struct {
	bus *Loopback
}

func (p *loopbackPub) Send(ctx context.Context, frame string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.bus.publish(frame); err != nil {
		return &Error{Op: "send", Endpoint: "loopback", Err: err}
	}
	return nil
}

// Close is a no-op; the bus outlives its publishers.
func (p *loopbackPub) Close() error { return nil }

type loopbackSub struct {
	bus    *Loopback
	prefix string
	inbox  *inbox
}

func (s *loopbackSub) Recv(timeout time.Duration) (string, error) {
	return s.inbox.recv(timeout)
}

func (s *loopbackSub) Dropped() uint64 {
	return s.inbox.Dropped()
}

func (s *loopbackSub) Close() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	s.inbox.close()
	return nil
}
