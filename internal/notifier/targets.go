package notifier

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/anstrom/shodan-notifier/internal/errors"
)

// ReadTargets reads the newline-delimited address list at path.
func ReadTargets(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapStoreError(errors.CodeFileNotFound, "open targets", path, err)
		}
		return nil, errors.WrapStoreError(errors.CodeSnapshotRead, "open targets", path, err)
	}
	defer f.Close()

	targets, err := ParseTargets(f)
	if err != nil {
		return nil, errors.WrapStoreError(errors.CodeSnapshotRead, "read targets", path, err)
	}
	return targets, nil
}

// ParseTargets returns one address per non-blank line in file order.
// Surrounding whitespace is trimmed, lines starting with '#' are comments,
// and duplicates are kept.
func ParseTargets(r io.Reader) ([]string, error) {
	var targets []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return targets, nil
}
