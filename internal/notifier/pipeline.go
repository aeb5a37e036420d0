// Package notifier runs the lookup, snapshot, diff, report and publish
// pipeline once over a list of target addresses.
package notifier

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/shodan-notifier/internal/diff"
	"github.com/anstrom/shodan-notifier/internal/errors"
	"github.com/anstrom/shodan-notifier/internal/logging"
	"github.com/anstrom/shodan-notifier/internal/metrics"
	"github.com/anstrom/shodan-notifier/internal/publish"
	"github.com/anstrom/shodan-notifier/internal/ratelimit"
	"github.com/anstrom/shodan-notifier/internal/report"
	"github.com/anstrom/shodan-notifier/internal/shodan"
	"github.com/anstrom/shodan-notifier/internal/snapshot"
)

// Run modes.
const (
	ModeFirstRun    = metrics.ModeFirstRun
	ModeIncremental = metrics.ModeIncremental
)

// Pipeline holds the collaborators of one run. Lookup, Store, Publisher
// and Builder are required; the rest have usable zero values.
type Pipeline struct {
	Lookup    shodan.Lookup
	Pacer     ratelimit.Pacer
	Store     snapshot.Store
	Publisher publish.Publisher
	Builder   *report.Builder
	Metrics   *metrics.PrometheusMetrics
	Logger    *logging.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// DiffEnabled selects the incremental report when a previous
	// snapshot exists.
	DiffEnabled bool

	// Channel is passed to the publisher.
	Channel string

	// PDFDir receives a PDF copy of the report when set.
	PDFDir string
}

// RunResult describes a finished run.
type RunResult struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Targets int      `json:"targets"`
	Failed  []string `json:"failed,omitempty"`
	Rows    int      `json:"rows"`
	Added   int      `json:"added"`
	Removed int      `json:"removed"`

	Archived     bool   `json:"archived"`
	PDFPath      string `json:"pdf_path,omitempty"`
	Published    bool   `json:"published"`
	PublishError string `json:"publish_error,omitempty"`

	Document report.Document `json:"-"`
}

// Duration returns how long the run took.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Run looks up every target in order and publishes the report. A failed
// lookup skips its address. A failed delivery is recorded in the result
// and is not an error. Reading the previous snapshot or saving the new
// one is fatal, and nothing is published in that case.
func (p *Pipeline) Run(ctx context.Context, targets []string) (result *RunResult, err error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	started := p.now()
	result = &RunResult{
		RunID:     uuid.NewString(),
		Mode:      ModeFirstRun,
		StartedAt: started,
		Targets:   len(targets),
	}
	log := p.logger().WithComponent("notifier").WithRunID(result.RunID)
	log.Info("Starting run", "targets", len(targets), "diff_enabled", p.DiffEnabled)

	defer func() {
		result.FinishedAt = p.now()
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}
		p.Metrics.RecordRun(result.Mode, status, result.FinishedAt, result.Duration())
	}()

	rows, err := p.collect(ctx, log, targets, result)
	if err != nil {
		return result, err
	}

	snap := snapshot.Sort(rows)
	result.Rows = len(snap)
	p.Metrics.SetSnapshotRows(len(snap))

	builder := *p.Builder
	builder.Now = func() time.Time { return started }

	doc, err := p.render(log, &builder, snap, result)
	if err != nil {
		return result, err
	}
	result.Document = doc

	if err := p.Store.Save(snap); err != nil {
		log.ErrorStore("Failed to save snapshot", err)
		return result, err
	}
	log.InfoStore("Saved snapshot", "rows", len(snap))

	p.archive(log, snap, started, result)
	p.writePDF(log, doc, result)
	p.deliver(ctx, log, doc, result)

	log.Info("Run completed",
		"mode", result.Mode,
		"rows", result.Rows,
		"added", result.Added,
		"removed", result.Removed,
		"failed_lookups", len(result.Failed),
		"published", result.Published,
		"duration", p.now().Sub(started))

	return result, nil
}

func (p *Pipeline) validate() error {
	switch {
	case p.Lookup == nil:
		return errors.ErrConfigMissing("lookup")
	case p.Store == nil:
		return errors.ErrConfigMissing("store")
	case p.Publisher == nil:
		return errors.ErrConfigMissing("publisher")
	case p.Builder == nil:
		return errors.ErrConfigMissing("report builder")
	}
	return nil
}

// collect looks up every target and returns the concatenated rows.
func (p *Pipeline) collect(ctx context.Context, log *logging.Logger, targets []string, result *RunResult) ([]snapshot.Row, error) {
	pacer := p.Pacer
	if pacer == nil {
		pacer = ratelimit.NoWait
	}

	var rows []snapshot.Row
	for _, target := range targets {
		if err := pacer.Wait(ctx); err != nil {
			return nil, errors.WrapLookupError(errors.CodeCanceled, "Run canceled", target, err)
		}

		start := time.Now()
		host, err := p.Lookup.Host(ctx, target)
		p.Metrics.RecordLookupDuration(time.Since(start))

		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.WrapLookupError(errors.CodeCanceled, "Run canceled", target, ctx.Err())
			}
			log.ErrorLookup("Lookup failed, skipping address", target, err, "code", errors.GetCode(err))
			p.Metrics.IncrementLookups(metrics.StatusError)
			result.Failed = append(result.Failed, target)
			continue
		}

		hostRows := snapshot.Normalize(host)
		p.Metrics.IncrementLookups(metrics.StatusSuccess)
		log.Debug("Lookup succeeded", "target", target, "services", len(hostRows))
		rows = append(rows, hostRows...)
	}

	return rows, nil
}

// render picks the report mode and builds the document.
func (p *Pipeline) render(log *logging.Logger, b *report.Builder, snap snapshot.Snapshot, result *RunResult) (report.Document, error) {
	if !p.DiffEnabled {
		return b.FirstRun(snap), nil
	}

	exists, err := p.Store.Exists()
	if err != nil {
		log.ErrorStore("Failed to check previous snapshot", err)
		return report.Document{}, err
	}
	if !exists {
		log.InfoStore("No previous snapshot, reporting full listing")
		return b.FirstRun(snap), nil
	}

	old, err := p.Store.Load()
	if err != nil {
		log.ErrorStore("Failed to load previous snapshot", err)
		return report.Document{}, err
	}

	res := diff.Compute(old, snap)
	result.Mode = ModeIncremental
	result.Added = len(res.Added)
	result.Removed = len(res.Removed)
	p.Metrics.SetDiffRows(result.Added, result.Removed)

	return b.Incremental(res), nil
}

func (p *Pipeline) archive(log *logging.Logger, snap snapshot.Snapshot, date time.Time, result *RunResult) {
	err := p.Store.Archive(snap, date)
	switch {
	case err == nil:
		result.Archived = true
		log.InfoStore("Archived snapshot", "date", date.Format(snapshot.ArchiveDateLayout))
	case stderrors.Is(err, snapshot.ErrArchiveExists):
		log.Warn("Archive for date already exists, keeping the first one",
			"component", "store", "date", date.Format(snapshot.ArchiveDateLayout))
	default:
		log.ErrorStore("Failed to archive snapshot", err)
	}
}

func (p *Pipeline) writePDF(log *logging.Logger, doc report.Document, result *RunResult) {
	if p.PDFDir == "" {
		return
	}

	path := filepath.Join(p.PDFDir, report.PDFName(doc))
	if err := report.WritePDF(doc, path); err != nil {
		log.Error("Failed to write PDF report", "path", path, "error", err)
		return
	}
	result.PDFPath = path
}

func (p *Pipeline) deliver(ctx context.Context, log *logging.Logger, doc report.Document, result *RunResult) {
	provider := p.Publisher.Name()

	if err := p.Publisher.Publish(ctx, p.Channel, doc); err != nil {
		detail := err.Error()
		var pubErr *errors.PublishError
		if stderrors.As(err, &pubErr) && pubErr.ProviderError != "" {
			detail = pubErr.ProviderError
		}
		log.ErrorPublish("Report delivery failed", provider, err, "channel", p.Channel, "detail", detail)
		p.Metrics.IncrementPublish(provider, metrics.StatusError)
		result.PublishError = detail
		return
	}

	result.Published = true
	p.Metrics.IncrementPublish(provider, metrics.StatusSuccess)
	log.InfoPublish("Report delivered", provider, "channel", p.Channel, "bytes", len(doc.Body))
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() *logging.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logging.Default()
}

// String summarizes the result for console output.
func (r *RunResult) String() string {
	return fmt.Sprintf("run %s: mode=%s rows=%d added=%d removed=%d failed=%d published=%t",
		r.RunID, r.Mode, r.Rows, r.Added, r.Removed, len(r.Failed), r.Published)
}
