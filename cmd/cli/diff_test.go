package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/shodan-notifier/internal/report"
	"github.com/anstrom/shodan-notifier/internal/snapshot"
)

func seedArchives(t *testing.T) *snapshot.FileStore {
	t.Helper()
	store := newCLIStore(t)

	older := snapshot.Sort([]snapshot.Row{
		{IP: "192.0.2.1", Port: 22, OS: "-", Hostnames: "-", Domains: "-", Product: "OpenSSH", Version: "-", Vulns: "-"},
		{IP: "192.0.2.1", Port: 80, OS: "-", Hostnames: "-", Domains: "-", Product: "nginx", Version: "-", Vulns: "CVE-1"},
	})
	newer := snapshot.Sort([]snapshot.Row{
		{IP: "192.0.2.1", Port: 80, OS: "-", Hostnames: "-", Domains: "-", Product: "nginx", Version: "-", Vulns: "-"},
	})

	require.NoError(t, store.Archive(older, day(t, "2024-04-30")))
	require.NoError(t, store.Archive(newer, day(t, "2024-05-01")))
	require.NoError(t, store.Save(newer))
	return store
}

func TestCompareSnapshotsReport(t *testing.T) {
	store := seedArchives(t)
	builder := &report.Builder{Title: "Shodan_Notifier", Filename: "shodan_notifier.txt"}

	var buf bytes.Buffer
	err := compareSnapshots(&buf, store, builder, diffOptions{From: "2024-04-30", To: "2024-05-01"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "2024-05-01")

	removed, added, found := strings.Cut(out, report.Increment)
	require.True(t, found)
	assert.Contains(t, removed, report.Decrement)
	assert.Contains(t, removed, "192.0.2.1,22,-,-,-,OpenSSH,-,-")
	assert.Contains(t, removed, "192.0.2.1,80,-,-,-,nginx,-,CVE-1")
	assert.Contains(t, added, "1,192.0.2.1,80,-,-,-,nginx,-,-")
	assert.True(t, strings.HasSuffix(out, report.Farewell+"\n"))

	// the builder passed in is not modified
	assert.Nil(t, builder.Now)
}

func TestCompareSnapshotsAgainstLatest(t *testing.T) {
	store := seedArchives(t)

	var buf bytes.Buffer
	err := compareSnapshots(&buf, store, &report.Builder{}, diffOptions{From: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(buf.String(), report.NoResults))
}

func TestCompareSnapshotsUnified(t *testing.T) {
	store := seedArchives(t)

	var buf bytes.Buffer
	err := compareSnapshots(&buf, store, &report.Builder{}, diffOptions{
		From: "2024-04-30", To: "2024-05-01", Unified: true, Context: 3,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "--- previous")
	assert.Contains(t, out, "+++ current")
	assert.Contains(t, out, "-192.0.2.1,22,-,-,-,OpenSSH,-,-\n")
	assert.Contains(t, out, "+192.0.2.1,80,-,-,-,nginx,-,-\n")
}

func TestCompareSnapshotsErrors(t *testing.T) {
	store := seedArchives(t)

	tests := []struct {
		name string
		opts diffOptions
	}{
		{"bad from date", diffOptions{From: "30-04-2024"}},
		{"missing from archive", diffOptions{From: "2023-01-01"}},
		{"bad to date", diffOptions{From: "2024-04-30", To: "tomorrow"}},
		{"missing to archive", diffOptions{From: "2024-04-30", To: "2024-06-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compareSnapshots(&bytes.Buffer{}, store, &report.Builder{}, tt.opts)
			assert.Error(t, err)
		})
	}
}
