// Package report renders snapshots and diffs into the plain text document
// that is published after each run.
package report

import (
	"strings"
	"time"

	"github.com/anstrom/shodan-notifier/internal/diff"
	"github.com/anstrom/shodan-notifier/internal/snapshot"
)

// Report text fragments.
const (
	DateLayout = "2006-01-02"

	Rule         = "========================================"
	ColumnHeader = "No, IP, Port, OS, Hostnames, Domains, Product, Version, Vulns, Timestamp."
	Decrement    = "### Following shows DECREMENT from last results"
	Increment    = "### Following shows INCREMENT from last results"
	NoResults    = "No results"
	Farewell     = "Have a good day!"

	headerLine1 = "Shodan notifier got following scan results on "
	headerLine2 = "If previous result exists, diffs are only shown."
)

// DefaultTitle is used when the builder has no title.
const DefaultTitle = "Shodan_Notifier"

// Document is a rendered report ready for delivery.
type Document struct {
	Title    string
	Filename string
	Body     string

	// Date is the run date printed in the header.
	Date time.Time
}

// Builder renders documents. The zero value is usable.
type Builder struct {
	Title    string
	Filename string

	// Now returns the run date; defaults to time.Now.
	Now func() time.Time
}

// FirstRun renders every row of snap. Used when no previous snapshot exists
// or diffing is disabled.
func (b *Builder) FirstRun(snap snapshot.Snapshot) Document {
	now := b.now()

	var sb strings.Builder
	writeHeader(&sb, now)
	writeLine(&sb, ColumnHeader)
	writeRows(&sb, snap)
	writeFooter(&sb)

	return b.document(now, sb.String())
}

// Incremental renders the removed and added rows of res. An empty side is
// shown as NoResults.
func (b *Builder) Incremental(res diff.Result) Document {
	now := b.now()

	var sb strings.Builder
	writeHeader(&sb, now)

	writeLine(&sb, Decrement)
	writeLine(&sb, ColumnHeader)
	writeSection(&sb, res.Removed)
	sb.WriteString("\n")

	writeLine(&sb, Increment)
	writeLine(&sb, ColumnHeader)
	writeSection(&sb, res.Added)

	writeFooter(&sb)

	return b.document(now, sb.String())
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Builder) document(now time.Time, body string) Document {
	title := b.Title
	if title == "" {
		title = DefaultTitle
	}
	return Document{
		Title:    title,
		Filename: b.Filename,
		Body:     body,
		Date:     now,
	}
}

func writeHeader(sb *strings.Builder, now time.Time) {
	writeLine(sb, headerLine1+now.Format(DateLayout)+".")
	writeLine(sb, headerLine2)
	writeLine(sb, Rule)
}

// writeFooter ends the document without a trailing newline.
func writeFooter(sb *strings.Builder) {
	writeLine(sb, Rule)
	sb.WriteString(Farewell)
}

func writeSection(sb *strings.Builder, rows []snapshot.Row) {
	if len(rows) == 0 {
		writeLine(sb, NoResults)
		return
	}
	writeRows(sb, rows)
}

func writeRows(sb *strings.Builder, rows []snapshot.Row) {
	for i := range rows {
		writeLine(sb, rows[i].String())
	}
}

func writeLine(sb *strings.Builder, line string) {
	sb.WriteString(line)
	sb.WriteString("\n")
}
