package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/bloom/internal/config"
)

func TestBuild_Levels(t *testing.T) {
	log, err := Build(config.Observability{ServiceName: "bloom", LogLevel: "debug", LogEncoding: "json"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = Build(config.Observability{ServiceName: "bloom", LogLevel: "bogus", LogEncoding: "console"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}
