package snapshot

import (
	"bufio"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/anstrom/shodan-notifier/internal/errors"
)

const (
	// ArchiveDateLayout keys archive files by calendar date.
	ArchiveDateLayout = "2006-01-02"

	archiveSuffix = "_result.csv"

	dirPerm  = 0o750
	filePerm = 0o640
)

// ErrArchiveExists is returned by Archive when the date already has an
// archive file. Archives are never overwritten.
var ErrArchiveExists = stderrors.New("archive for date already exists")

// Store persists the latest snapshot and the dated archive.
type Store interface {
	// Exists reports whether a previous snapshot is available.
	Exists() (bool, error)

	// Load returns the previous snapshot's rows in stored order.
	Load() ([]Row, error)

	// Save replaces the previous snapshot.
	Save(snap Snapshot) error

	// Archive keeps a copy of snap keyed by the calendar date of date.
	Archive(snap Snapshot, date time.Time) error
}

// FileStore keeps the latest snapshot in one file and archives in a directory.
type FileStore struct {
	latestPath string
	archiveDir string
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a store for the given latest file and archive directory.
func NewFileStore(latestPath, archiveDir string) *FileStore {
	return &FileStore{
		latestPath: latestPath,
		archiveDir: archiveDir,
	}
}

// LatestPath returns the path of the latest snapshot file.
func (s *FileStore) LatestPath() string {
	return s.latestPath
}

// ArchivePath returns the archive file path for a date.
func (s *FileStore) ArchivePath(date time.Time) string {
	return filepath.Join(s.archiveDir, date.Format(ArchiveDateLayout)+archiveSuffix)
}

// Exists reports whether the latest snapshot file is present.
func (s *FileStore) Exists() (bool, error) {
	_, err := os.Stat(s.latestPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.WrapStoreError(errors.CodeSnapshotRead, "stat snapshot", s.latestPath, err)
}

// Load reads the latest snapshot file.
func (s *FileStore) Load() ([]Row, error) {
	return readFile(s.latestPath)
}

// LoadArchive reads the archive file for a date.
func (s *FileStore) LoadArchive(date time.Time) ([]Row, error) {
	return readFile(s.ArchivePath(date))
}

// ListArchives returns the dates that have an archive file, oldest first.
func (s *FileStore) ListArchives() ([]time.Time, error) {
	entries, err := os.ReadDir(s.archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapStoreError(errors.CodeSnapshotRead, "list archives", s.archiveDir, err)
	}

	var dates []time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		date, err := time.Parse(ArchiveDateLayout, strings.TrimSuffix(name, archiveSuffix))
		if err != nil {
			continue
		}
		dates = append(dates, date)
	}

	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return dates, nil
}

// Save atomically replaces the latest snapshot file.
func (s *FileStore) Save(snap Snapshot) error {
	tmp, err := writeTemp(s.latestPath, snap)
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, s.latestPath); err != nil {
		_ = os.Remove(tmp)
		return errors.WrapStoreError(errors.CodeSnapshotWrite, "replace snapshot", s.latestPath, err)
	}

	return nil
}

// Archive writes the dated copy. If the date is already archived the file
// is left untouched and ErrArchiveExists is returned.
func (s *FileStore) Archive(snap Snapshot, date time.Time) error {
	path := s.ArchivePath(date)

	if _, err := os.Stat(path); err == nil {
		return ErrArchiveExists
	}

	tmp, err := writeTemp(path, snap)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	// Link fails when the target exists, so a concurrent archive of the
	// same date cannot be clobbered.
	if err := os.Link(tmp, path); err != nil {
		if stderrors.Is(err, fs.ErrExist) {
			return ErrArchiveExists
		}
		return errors.WrapStoreError(errors.CodeSnapshotWrite, "write archive", path, err)
	}

	return nil
}

func readFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapStoreError(errors.CodeFileNotFound, "open snapshot", path, err)
		}
		return nil, errors.WrapStoreError(errors.CodeSnapshotRead, "open snapshot", path, err)
	}
	defer f.Close()

	rows, err := ReadRows(bufio.NewReader(f))
	if err != nil {
		var corrupt *CorruptRowError
		if stderrors.As(err, &corrupt) {
			return nil, errors.WrapStoreError(errors.CodeSnapshotCorrupt, "parse snapshot", path, err)
		}
		return nil, errors.WrapStoreError(errors.CodeSnapshotRead, "read snapshot", path, err)
	}

	return rows, nil
}

// writeTemp writes snap to a temporary file next to path and returns its name.
func writeTemp(path string, snap Snapshot) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", errors.WrapStoreError(errors.CodeDirectoryCreate, "create directory", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", errors.WrapStoreError(errors.CodeSnapshotWrite, "create temp file", dir, err)
	}
	name := f.Name()

	fail := func(op string, err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(name)
		return "", errors.WrapStoreError(errors.CodeSnapshotWrite, op, path, err)
	}

	w := bufio.NewWriter(f)
	if err := WriteRows(w, snap); err != nil {
		return fail("write snapshot", err)
	}
	if err := w.Flush(); err != nil {
		return fail("flush snapshot", err)
	}
	if err := f.Chmod(filePerm); err != nil {
		return fail("chmod snapshot", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync snapshot", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", errors.WrapStoreError(errors.CodeSnapshotWrite, "close snapshot", path, err)
	}

	return name, nil
}
