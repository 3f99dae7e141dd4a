// Package redisch carries cursor messages over Redis Pub/Sub, one channel
// per document.
package redisch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dannyswat/vcursor"
)

// Topic is the Pub/Sub channel name for a document.
func Topic(docID string) string {
	return "vcursor:doc:" + docID
}

// Channel is a vcursor.Channel backed by Redis. Messages published by any
// subscriber, this one included, are dispatched to its handlers by Run.
type Channel struct {
	vcursor.Mux

	rdb    redis.UniversalClient
	topic  string
	pubsub *redis.PubSub
	ctx    context.Context
	logger *slog.Logger
}

// Subscribe subscribes to the document's topic. ctx bounds every publish
// made through the returned Channel.
func Subscribe(ctx context.Context, rdb redis.UniversalClient, docID string, logger *slog.Logger) (*Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	topic := Topic(docID)
	pubsub := rdb.Subscribe(ctx, topic)
	// Wait for the subscription to be confirmed so no publish made after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return &Channel{
		rdb:    rdb,
		topic:  topic,
		pubsub: pubsub,
		ctx:    ctx,
		logger: logger.With("component", "redisch", "topic", topic),
	}, nil
}

func (c *Channel) Send(m vcursor.Message) error {
	buf, err := vcursor.EncodeMessage(m)
	if err != nil {
		return err
	}
	if err := c.rdb.Publish(c.ctx, c.topic, buf).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", c.topic, err)
	}
	return nil
}

// Run dispatches received messages until ctx is done or the subscription
// is closed.
func (c *Channel) Run(ctx context.Context) error {
	ch := c.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			m, err := vcursor.DecodeMessage([]byte(msg.Payload))
			if err != nil {
				c.logger.Warn("dropping undecodable message", "err", err)
				continue
			}
			c.Dispatch(m)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Channel) Close() error {
	return c.pubsub.Close()
}
