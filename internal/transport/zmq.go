package transport

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/go-zeromq/zmq4"
)

const recvBackoff = 10 * time.Millisecond

type ZMQPublisher struct {
	sock     zmq4.Socket
	endpoint string
}

// NewZMQPublisher binds a PUB socket. A "*" host binds every interface.
func NewZMQPublisher(ctx context.Context, endpoint string, log *slog.Logger) (*ZMQPublisher, error) {
	sock := zmq4.NewPub(ctx)
	bind := normalizeBind(endpoint)
	if err := sock.Listen(bind); err != nil {
		sock.Close()
		return nil, &Error{Op: "bind", Endpoint: endpoint, Err: err}
	}
	log.Info("zmq publisher bound", "endpoint", endpoint, "addr", addrString(sock.Addr()))
	return &ZMQPublisher{sock: sock, endpoint: endpoint}, nil
}

func (p *ZMQPublisher) Send(ctx context.Context, frame string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.sock.Send(zmq4.NewMsgString(frame)); err != nil {
		return &Error{Op: "send", Endpoint: p.endpoint, Err: err}
	}
	return nil
}

// Addr is the bound listener address, useful when binding port 0.
func (p *ZMQPublisher) Addr() net.Addr {
	return p.sock.Addr()
}

func (p *ZMQPublisher) Close() error {
	return p.sock.Close()
}

type ZMQOptions struct {
	DialRetry   time.Duration
	DialRetries int
	Buffer      int
}

type ZMQSubscriber struct {
	sock     zmq4.Socket
	endpoint string
	inbox    *inbox
	cancel   context.CancelFunc
	done     chan struct{}
	log      *slog.Logger
}

// NewZMQSubscriber connects a SUB socket with a prefix subscription on topic.
func NewZMQSubscriber(ctx context.Context, endpoint, topic string, opts ZMQOptions, log *slog.Logger) (*ZMQSubscriber, error) {
	ctx, cancel := context.WithCancel(ctx)

	var sockOpts []zmq4.Option
	if opts.DialRetry > 0 {
		sockOpts = append(sockOpts, zmq4.WithDialerRetry(opts.DialRetry))
	}
	if opts.DialRetries != 0 {
		sockOpts = append(sockOpts, zmq4.WithDialerMaxRetries(opts.DialRetries))
	}
	sock := zmq4.NewSub(ctx, sockOpts...)

	if err := sock.Dial(endpoint); err != nil {
		cancel()
		sock.Close()
		return nil, &Error{Op: "connect", Endpoint: endpoint, Err: err}
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, topic); err != nil {
		cancel()
		sock.Close()
		return nil, &Error{Op: "subscribe", Endpoint: endpoint, Err: err}
	}

	s := &ZMQSubscriber{
		sock:     sock,
		endpoint: endpoint,
		inbox:    newInbox(opts.Buffer),
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      log,
	}
	go s.pump(ctx)
	log.Info("zmq subscriber connected", "endpoint", endpoint, "topic", topic)
	return s, nil
}

func (s *ZMQSubscriber) pump(ctx context.Context) {
	defer close(s.done)
	defer s.inbox.close()
	for {
		msg, err := s.sock.Recv()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.inbox.fail(&Error{Op: "recv", Endpoint: s.endpoint, Err: err})
			select {
			case <-ctx.Done():
				return
			case <-time.After(recvBackoff):
			}
			continue
		}
		if len(msg.Frames) == 0 {
			continue
		}
		s.inbox.offer(string(bytes.Join(msg.Frames, nil)))
	}
}

func (s *ZMQSubscriber) Recv(timeout time.Duration) (string, error) {
	return s.inbox.recv(timeout)
}

// Dropped counts frames discarded because the inbox was full.
func (s *ZMQSubscriber) Dropped() uint64 {
	return s.inbox.Dropped()
}

func (s *ZMQSubscriber) Close() error {
	s.cancel()
	err := s.sock.Close()
	<-s.done
	return err
}

func normalizeBind(endpoint string) string {
	return strings.Replace(endpoint, "://*:", "://0.0.0.0:", 1)
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
