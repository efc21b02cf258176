// Package transport moves encoded frames between a publisher and its
// subscribers.
//
// Three backends share the [Publisher] and [Subscriber] interfaces:
//
//   - zmq: ZeroMQ PUB/SUB. The publisher binds, subscribers connect and set a
//     prefix subscription equal to the topic.
//   - nats: core NATS publish/subscribe on a subject equal to the topic.
//   - loopback: an in-process bus with the same prefix filtering as zmq.
//
// Delivery is fire-and-forget. Subscribers keep a small bounded inbox fed by
// one reader goroutine; when the inbox is full the oldest frame is dropped,
// since consumers only care about the newest state. [Subscriber.Recv] waits
// at most the given timeout and returns [ErrNoData] when nothing arrived.
package transport
