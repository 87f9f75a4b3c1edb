package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	cases := []struct {
		env, level string
		enabled    zap.AtomicLevel
	}{
		{"dev", "debug", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"prod", "warn", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"prod", "bogus", zap.NewAtomicLevelAt(zap.InfoLevel)},
	}

	for _, tc := range cases {
		t.Run(tc.env+"/"+tc.level, func(t *testing.T) {
			log, err := New(tc.env, tc.level)
			require.NoError(t, err)
			require.NotNil(t, log)
			assert.True(t, log.Core().Enabled(tc.enabled.Level()))
			assert.False(t, log.Core().Enabled(tc.enabled.Level()-1))
		})
	}
}
