package cli

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/pubsub"

	"github.com/anstrom/shodan-notifier/internal/config"
	"github.com/anstrom/shodan-notifier/internal/errors"
	"github.com/anstrom/shodan-notifier/internal/logging"
	"github.com/anstrom/shodan-notifier/internal/metrics"
	"github.com/anstrom/shodan-notifier/internal/notifier"
	"github.com/anstrom/shodan-notifier/internal/publish"
	"github.com/anstrom/shodan-notifier/internal/ratelimit"
	"github.com/anstrom/shodan-notifier/internal/report"
	"github.com/anstrom/shodan-notifier/internal/shodan"
	"github.com/anstrom/shodan-notifier/internal/snapshot"
)

// buildPipeline wires a pipeline from cfg. The returned close function
// releases publisher resources and is never nil.
func buildPipeline(ctx context.Context, cfg *config.Config, pm *metrics.PrometheusMetrics,
	logger *logging.Logger, out io.Writer) (*notifier.Pipeline, func(), error) {
	pub, closePub, err := newPublisher(ctx, cfg, out)
	if err != nil {
		return nil, func() {}, err
	}

	p := &notifier.Pipeline{
		Lookup: shodan.NewClient(shodan.Config{
			BaseURL: cfg.Lookup.BaseURL,
			APIKey:  cfg.Credentials.ShodanAPIKey,
			Timeout: cfg.Lookup.Timeout,
			Minify:  cfg.Lookup.Minify,
		}),
		Pacer:       ratelimit.NewInterval(cfg.Lookup.MinInterval),
		Store:       newStore(cfg),
		Publisher:   pub,
		Builder:     newBuilder(cfg),
		Metrics:     pm,
		Logger:      logger,
		DiffEnabled: cfg.Diff.Enabled,
		Channel:     cfg.Publish.Channel,
		PDFDir:      cfg.Report.PDFDir,
	}

	return p, closePub, nil
}

// newPublisher creates the report sink selected by publish.kind.
func newPublisher(ctx context.Context, cfg *config.Config, out io.Writer) (publish.Publisher, func(), error) {
	switch cfg.Publish.Kind {
	case config.PublisherSlack:
		return publish.NewSlack(publish.SlackConfig{
			BaseURL: cfg.Publish.Slack.BaseURL,
			Token:   cfg.Credentials.SlackBotToken,
			Timeout: cfg.Publish.Slack.Timeout,
		}), func() {}, nil

	case config.PublisherPubSub:
		client, err := pubsub.NewClient(ctx, cfg.Publish.PubSub.ProjectID)
		if err != nil {
			return nil, func() {}, errors.WrapPublishError(publish.ProviderPubSub,
				fmt.Errorf("failed to create pubsub client: %w", err))
		}
		p := publish.NewPubSub(client.Topic(cfg.Publish.PubSub.TopicID))
		return p, func() {
			p.Stop()
			if err := client.Close(); err != nil {
				logging.Warn("Failed to close pubsub client", "error", err)
			}
		}, nil

	case config.PublisherStdout:
		return publish.NewWriter(out), func() {}, nil
	}

	return nil, func() {}, errors.ErrConfigInvalid("publish.kind", cfg.Publish.Kind)
}

func newStore(cfg *config.Config) *snapshot.FileStore {
	return snapshot.NewFileStore(cfg.Store.LatestPath, cfg.Store.ArchiveDir)
}

func newBuilder(cfg *config.Config) *report.Builder {
	return &report.Builder{
		Title:    cfg.Report.Title,
		Filename: cfg.Report.Filename,
	}
}
