package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/shodan-notifier/internal/errors"
)

func sampleSnapshot() Snapshot {
	return Sort([]Row{
		{IP: "1.2.3.4", Port: 443, OS: "-", Hostnames: "example.com", Domains: "example.com",
			Product: "nginx", Version: "1.18.0", Vulns: "CVE-1|CVE-2", Timestamp: "2024-05-01T10:00:00.000000"},
		{IP: "1.2.3.4", Port: 80, OS: "-", Hostnames: "-", Domains: "-",
			Product: "Apache httpd, mod_ssl", Version: "-", Vulns: "-", Timestamp: "2024-05-01T09:00:00.000000"},
	})
}

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFileStore(filepath.Join(dir, "last_result.csv"), filepath.Join(dir, "logs")), dir
}

func TestWriteReadRows(t *testing.T) {
	snap := sampleSnapshot()

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, snap))

	assert.Equal(t,
		"1,1.2.3.4,80,-,-,-,\"Apache httpd, mod_ssl\",-,-,2024-05-01T09:00:00.000000\n"+
			"2,1.2.3.4,443,-,example.com,example.com,nginx,1.18.0,CVE-1|CVE-2,2024-05-01T10:00:00.000000\n",
		buf.String())

	rows, err := ReadRows(&buf)
	require.NoError(t, err)
	assert.Equal(t, []Row(snap), rows)
}

func TestReadRowsLegacyFormat(t *testing.T) {
	// rows as written by earlier releases, blank trailing line included
	legacy := "1,1.2.3.4,22,-,-,-,OpenSSH,8.2p1,-,2024-04-30T08:00:00.000000\n" +
		"2,1.2.3.4,80,-,host.example,example,nginx,-,CVE-2021-23017,2024-04-30T08:01:00.000000\n\n"

	rows, err := ReadRows(strings.NewReader(legacy))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 22, rows[0].Port)
	assert.Equal(t, "OpenSSH", rows[0].Product)
	assert.Equal(t, "CVE-2021-23017", rows[1].Vulns)
}

func TestReadRowsCorrupt(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few columns", "1,1.2.3.4,80\n"},
		{"bad port", "1,1.2.3.4,http,-,-,-,-,-,-,ts\n"},
		{"bad sequence", "x,1.2.3.4,80,-,-,-,-,-,-,ts\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRows(strings.NewReader(tt.input))
			var corrupt *CorruptRowError
			require.ErrorAs(t, err, &corrupt)
			assert.Equal(t, 1, corrupt.Line)
		})
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	store, _ := newTestStore(t)

	exists, err := store.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Load()
	assert.True(t, errors.IsCode(err, errors.CodeFileNotFound))

	snap := sampleSnapshot()
	require.NoError(t, store.Save(snap))

	exists, err = store.Exists()
	require.NoError(t, err)
	assert.True(t, exists)

	rows, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []Row(snap), rows)

	// overwrite with a smaller snapshot
	require.NoError(t, store.Save(snap[:1]))
	rows, err = store.Load()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFileStoreSaveEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save(Sort(nil)))

	exists, err := store.Exists()
	require.NoError(t, err)
	assert.True(t, exists)

	rows, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, store.Save(sampleSnapshot()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(store.LatestPath(), []byte("garbage\n"), 0o600))

	_, err := store.Load()
	assert.True(t, errors.IsCode(err, errors.CodeSnapshotCorrupt))
	assert.True(t, errors.IsFatal(err))
}

func TestFileStoreArchive(t *testing.T) {
	store, dir := newTestStore(t)
	day := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	snap := sampleSnapshot()

	require.NoError(t, store.Archive(snap, day))
	assert.Equal(t, filepath.Join(dir, "logs", "2024-05-01_result.csv"), store.ArchivePath(day))

	rows, err := store.LoadArchive(day)
	require.NoError(t, err)
	assert.Equal(t, []Row(snap), rows)

	// same date again keeps the first copy
	err = store.Archive(snap[:1], day.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrArchiveExists)

	rows, err = store.LoadArchive(day)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFileStoreListArchives(t *testing.T) {
	store, dir := newTestStore(t)

	dates, err := store.ListArchives()
	require.NoError(t, err)
	assert.Empty(t, dates)

	for _, d := range []string{"2024-05-03", "2024-05-01", "2024-05-02"} {
		day, _ := time.Parse(ArchiveDateLayout, d)
		require.NoError(t, store.Archive(sampleSnapshot(), day))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "notes.txt"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "bogus_result.csv"), nil, 0o600))

	dates, err = store.ListArchives()
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.Equal(t, "2024-05-01", dates[0].Format(ArchiveDateLayout))
	assert.Equal(t, "2024-05-03", dates[2].Format(ArchiveDateLayout))
}
