package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const natsConnectTimeout = 5 * time.Second

type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewNATSPublisher connects to url and publishes on subject.
func NewNATSPublisher(url, subject string, log *slog.Logger) (*NATSPublisher, error) {
	nc, err := connectNATS(url, "jointlink-publisher", log)
	if err != nil {
		return nil, err
	}
	log.Info("nats publisher connected", "url", url, "subject", subject)
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

func (p *NATSPublisher) Send(ctx context.Context, frame string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, []byte(frame)); err != nil {
		return &Error{Op: "send", Endpoint: p.nc.ConnectedUrl(), Err: err}
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	err := p.nc.Flush()
	p.nc.Close()
	return err
}

type NATSSubscriber struct {
	nc    *nats.Conn
	sub   *nats.Subscription
	inbox *inbox
}

// NewNATSSubscriber subscribes to subject on the server at url.
func NewNATSSubscriber(url, subject string, buffer int, log *slog.Logger) (*NATSSubscriber, error) {
	nc, err := connectNATS(url, "jointlink-subscriber", log)
	if err != nil {
		return nil, err
	}
	s := &NATSSubscriber{nc: nc, inbox: newInbox(buffer)}
	sub, err := nc.Subscribe(subject, func(m *nats.Msg) {
		s.inbox.offer(string(m.Data))
	})
	if err != nil {
		nc.Close()
		return nil, &Error{Op: "subscribe", Endpoint: url, Err: err}
	}
	if err := nc.Flush(); err != nil {
		nc.Close()
		return nil, &Error{Op: "subscribe", Endpoint: url, Err: err}
	}
	s.sub = sub
	log.Info("nats subscriber connected", "url", url, "subject", subject)
	return s, nil
}

func (s *NATSSubscriber) Recv(timeout time.Duration) (string, error) {
	return s.inbox.recv(timeout)
}

// Dropped counts frames discarded because the inbox was full.
func (s *NATSSubscriber) Dropped() uint64 {
	return s.inbox.Dropped()
}

func (s *NATSSubscriber) Close() error {
	err := s.sub.Unsubscribe()
	s.nc.Close()
	s.inbox.close()
	return err
}

func connectNATS(url, name string, log *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(natsConnectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, &Error{Op: "connect", Endpoint: url, Err: err}
	}
	return nc, nil
}
