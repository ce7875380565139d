package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restore(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
	})
}

func TestSetupLevel(t *testing.T) {
	restore(t)

	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{" error ", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"loud", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			closer, err := Setup(tt.in, "")
			require.NoError(t, err)
			defer closer.Close()
			assert.Equal(t, tt.want, logrus.GetLevel())
		})
	}
}

func TestSetupAppendsToFile(t *testing.T) {
	restore(t)
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier run\n"), 0o644))

	closer, err := Setup("info", path)
	require.NoError(t, err)
	logrus.WithField("room", 3).Info("game result")
	logrus.Debug("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "earlier run\n")
	assert.Contains(t, content, "game result")
	assert.Contains(t, content, "room=3")
	assert.NotContains(t, content, "hidden")
}

func TestSetupUnwritableFile(t *testing.T) {
	restore(t)
	path := filepath.Join(t.TempDir(), "missing", "server.log")

	closer, err := Setup("info", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open log file")
	assert.NoError(t, closer.Close())
}
