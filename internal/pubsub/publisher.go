// Package pubsub exports domain events to an external broker.
package pubsub

import "context"

// Pack is one keyed message.
type Pack struct {
	Key []byte
	Msg []byte
}

// Publisher delivers packs to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, pack *Pack) error
	Close() error
}
