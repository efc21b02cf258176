// Package publisher runs the producer side of the link: on every tick it
// samples a Source, stamps the snapshot with the tick counter and sends the
// encoded frame.
package publisher
