// Package publish delivers rendered reports to a messaging sink.
package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/anstrom/shodan-notifier/internal/report"
)

// Provider names used in errors, logs and metrics.
const (
	ProviderSlack  = "slack"
	ProviderPubSub = "pubsub"
	ProviderStdout = "stdout"
)

// Publisher delivers a document to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, doc report.Document) error

	// Name identifies the provider.
	Name() string
}

// Writer prints documents to an io.Writer. Used for dry runs.
type Writer struct {
	w io.Writer
}

// Ensure Writer implements Publisher
var _ Publisher = (*Writer)(nil)

// NewWriter returns a publisher that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Name implements Publisher.
func (p *Writer) Name() string { return ProviderStdout }

// Publish writes the body followed by a newline.
func (p *Writer) Publish(ctx context.Context, _ string, doc report.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(p.w, doc.Body); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
