package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	err := New(ErrorTypeEngine, "query failed")
	assert.Equal(t, "engine: query failed", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("no such table: tiles")
	err := Wrap(cause, ErrorTypeEngine, "execute statement")

	require.NotNil(t, err)
	assert.Equal(t, cause, err.Unwrap())
	assert.Contains(t, err.Error(), "no such table")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeEngine, "ignored"))
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeNotInitialized, "gpu cache empty")
	wrapped := Wrap(err, ErrorTypeNotInitialized, "fetch precomputed")

	assert.True(t, IsType(err, ErrorTypeNotInitialized))
	assert.True(t, IsType(wrapped, ErrorTypeNotInitialized))
	assert.False(t, IsType(err, ErrorTypeEngine))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeEngine))
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
	}{
		{"not initialized", New(ErrorTypeNotInitialized, "no precompute yet"), true},
		{"malformed buffer", New(ErrorTypeMalformedBuffer, "short blob"), true},
		{"engine", New(ErrorTypeEngine, "syntax error"), false},
		{"lock", New(ErrorTypeLock, "engine closed"), false},
		{"plain error", fmt.Errorf("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
		})
	}
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeMalformedBuffer, "declared count implies more bytes").
		WithDetail("count", 128).
		WithDetail("bytes", 64)

	assert.Equal(t, 128, err.Details["count"])
	assert.Equal(t, 64, err.Details["bytes"])
}
