package notifier

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/shodan-notifier/internal/errors"
)

func TestParseTargets(t *testing.T) {
	input := "1.2.3.4\n  5.6.7.8  \n\n# office\n1.2.3.4\r\n\t\n9.9.9.9"

	targets, err := ParseTargets(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"1.2.3.4", "5.6.7.8", "1.2.3.4", "9.9.9.9"}, targets)
}

func TestParseTargetsEmpty(t *testing.T) {
	targets, err := ParseTargets(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestReadTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iplist.txt")
	require.NoError(t, os.WriteFile(path, []byte("8.8.8.8\n8.8.4.4\n"), 0o600))

	targets, err := ReadTargets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"8.8.8.8", "8.8.4.4"}, targets)
}

func TestReadTargetsMissing(t *testing.T) {
	_, err := ReadTargets(filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, errors.IsCode(err, errors.CodeFileNotFound))
}
