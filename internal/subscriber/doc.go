// Package subscriber runs the consumer side of the link. One Poll per host
// iteration receives at most one frame, rejects malformed, off-topic and
// stale snapshots, and writes accepted readings through the joint registry
// into a Sink.
package subscriber
