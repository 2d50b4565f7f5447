// Package publish streams emitted profile records to Google Cloud Pub/Sub.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/jfourny/profilescout/internal/crawler"
)

// Publisher publishes each emitted record as a JSON message on one topic. It
// implements crawler.RecordSink.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPublisher connects to Pub/Sub and verifies the topic exists so a typo in
// the topic ID fails at startup.
func NewPublisher(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*Publisher, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("project id and topic id are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client after topic check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !ok {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client after topic check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist", topicID)
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Emit publishes one record. The publish is confirmed before returning so the
// coordinator's emit accounting reflects delivered messages.
func (p *Publisher) Emit(ctx context.Context, rec crawler.ProfileRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ProfileURL, err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"profile_url": rec.ProfileURL,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish record %s: %w", rec.ProfileURL, err)
	}
	p.logger.Debug("record published",
		zap.String("profile_url", rec.ProfileURL),
		zap.String("message_id", id),
	)
	return nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
