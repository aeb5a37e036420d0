package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		CodeUnknown,
		CodeValidation,
		CodeConfiguration,
		CodeTimeout,
		CodeCanceled,
		CodeLookupFailed,
		CodeHostNotFound,
		CodeUnauthorized,
		CodeRateLimited,
		CodeInvalidPayload,
		CodeFileNotFound,
		CodeSnapshotRead,
		CodeSnapshotWrite,
		CodeSnapshotCorrupt,
		CodeDirectoryCreate,
		CodePublishFailed,
		CodeServiceUnavailable,
	}

	for _, code := range codes {
		if string(code) == "" {
			t.Errorf("Error code %v should not be empty", code)
		}
	}
}

func TestLookupError(t *testing.T) {
	t.Run("error with target", func(t *testing.T) {
		err := NewLookupError(CodeLookupFailed, "lookup failed", "1.2.3.4")
		assert.Equal(t, "[LOOKUP_FAILED] lookup failed (target: 1.2.3.4)", err.Error())
	})

	t.Run("with status", func(t *testing.T) {
		err := ErrHostNotFound("10.0.0.1").WithStatus(404)
		assert.Equal(t, 404, err.StatusCode)
		assert.Equal(t, CodeHostNotFound, err.Code)
	})

	t.Run("wrapped error", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := WrapLookupError(CodeLookupFailed, "request failed", "1.2.3.4", cause)
		assert.Same(t, cause, err.Unwrap())
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestStoreError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := WrapStoreError(CodeSnapshotWrite, "write snapshot", "/tmp/last_result.csv", cause)

	assert.Equal(t, "write snapshot", err.Operation)
	assert.Equal(t, "[SNAPSHOT_WRITE] write snapshot failed (path: /tmp/last_result.csv): disk full", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestPublishError(t *testing.T) {
	t.Run("provider error string wins", func(t *testing.T) {
		err := NewPublishError("slack", "channel_not_found")
		assert.Equal(t, "[PUBLISH_FAILED] Report delivery failed (provider: slack): channel_not_found", err.Error())
	})

	t.Run("transport cause", func(t *testing.T) {
		cause := fmt.Errorf("timeout")
		err := WrapPublishError("pubsub", cause)
		assert.Contains(t, err.Error(), "timeout")
		assert.Same(t, cause, errors.Unwrap(err))
	})
}

func TestConfigError(t *testing.T) {
	err := ErrConfigMissing("credentials.shodan_api_key")
	assert.Equal(t, "[CONFIGURATION] Required configuration field missing (field: credentials.shodan_api_key)", err.Error())

	err = ErrConfigInvalid("lookup.min_interval", "-1s")
	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, "-1s", err.Value)
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeUnknown},
		{"plain error", fmt.Errorf("boom"), CodeUnknown},
		{"lookup", ErrHostNotFound("1.1.1.1"), CodeHostNotFound},
		{"store", NewStoreError(CodeSnapshotCorrupt, "bad row", "x"), CodeSnapshotCorrupt},
		{"publish", NewPublishError("slack", "invalid_auth"), CodePublishFailed},
		{"config", ErrConfigMissing("x"), CodeConfiguration},
		{"wrapped", fmt.Errorf("run: %w", NewStoreError(CodeSnapshotRead, "read", "x")), CodeSnapshotRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}

func TestIsCode(t *testing.T) {
	assert.False(t, IsCode(nil, CodeUnknown))
	assert.True(t, IsCode(ErrHostNotFound("1.1.1.1"), CodeHostNotFound))
	assert.False(t, IsCode(ErrHostNotFound("1.1.1.1"), CodeLookupFailed))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrConfigMissing("x")))
	assert.True(t, IsFatal(NewStoreError(CodeSnapshotCorrupt, "bad row", "x")))
	assert.False(t, IsFatal(ErrHostNotFound("1.1.1.1")))
	assert.False(t, IsFatal(NewPublishError("slack", "not_in_channel")))
	assert.False(t, IsFatal(fmt.Errorf("plain")))
}
