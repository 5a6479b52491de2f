package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := newLogger(Config{Level: "loud", Encoding: "json"})
	require.Error(t, err)
}

func TestNewLoggerBuilds(t *testing.T) {
	log, err := newLogger(Config{Level: "debug", Encoding: "console"})
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestGetReturnsLogger(t *testing.T) {
	log := Get()
	require.NotNil(t, log)
	assert.Same(t, log, Get())
}
