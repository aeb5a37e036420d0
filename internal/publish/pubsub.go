package publish

import (
	"context"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/anstrom/shodan-notifier/internal/errors"
	"github.com/anstrom/shodan-notifier/internal/report"
)

const pubsubTimeout = 10 * time.Second

// PubSub publishes report bodies to a Cloud Pub/Sub topic.
type PubSub struct {
	topic *pubsub.Topic
}

// Ensure PubSub implements Publisher
var _ Publisher = (*PubSub)(nil)

// NewPubSub returns a publisher for topic.
func NewPubSub(topic *pubsub.Topic) *PubSub {
	return &PubSub{topic: topic}
}

// Name implements Publisher.
func (p *PubSub) Name() string { return ProviderPubSub }

// Publish sends the body with title, channel, filename and date attributes
// and waits for the server acknowledgement.
func (p *PubSub) Publish(ctx context.Context, channel string, doc report.Document) error {
	if p.topic == nil {
		return errors.NewPublishError(ProviderPubSub, "topic not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pubsubTimeout)
	defer cancel()

	_, err := p.topic.Publish(ctx, &pubsub.Message{
		Data: []byte(doc.Body),
		Attributes: map[string]string{
			"title":    doc.Title,
			"channel":  channel,
			"filename": doc.Filename,
			"date":     doc.Date.Format(report.DateLayout),
		},
	}).Get(ctx)
	if err != nil {
		return errors.WrapPublishError(ProviderPubSub, err)
	}
	return nil
}

// Stop flushes pending messages and releases the topic's goroutines.
func (p *PubSub) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}
