package logger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/offertory/pkg/config"
)

func TestNew_Level(t *testing.T) {
	l, err := New(&config.Config{Log: config.LogConfig{Level: "WARN"}})
	require.NoError(t, err)
	require.False(t, l.Desugar().Core().Enabled(-1))
	require.True(t, l.Desugar().Core().Enabled(1))

	_, err = New(&config.Config{Log: config.LogConfig{Level: "loud"}})
	require.Error(t, err)
}
