// Package publisher emits match events to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"leadwatch/internal/lead"
)

// PubSub publishes match events to a Google Cloud Pub/Sub topic. Every
// event is published synchronously so the caller learns about failures.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub creates a PubSub publisher for the given project and topic.
func NewPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSub{
		client: client,
		topic:  client.Topic(topicID),
		logger: logger,
	}, nil
}

// PublishMatch publishes one match event and waits for the server ack.
func (p *PubSub) PublishMatch(ctx context.Context, ev lead.MatchEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal match event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"source_type": string(ev.SourceType),
			"keyword":     ev.Keyword,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish match event %s: %w", ev.MatchID, err)
	}
	p.logger.Debug("published match event",
		zap.String("match_id", ev.MatchID),
		zap.String("message_id", id),
	)
	return nil
}

// Close flushes pending publishes and releases the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
