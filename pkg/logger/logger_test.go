package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name    string
		verbose int
		debug   bool
		want    logrus.Level
	}{
		{name: "default", want: logrus.WarnLevel},
		{name: "verbose", verbose: 1, want: logrus.InfoLevel},
		{name: "debug", debug: true, want: logrus.DebugLevel},
		{name: "debug_wins_over_single_verbose", verbose: 1, debug: true, want: logrus.DebugLevel},
		{name: "trace", verbose: 2, want: logrus.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Level(tt.verbose, tt.debug))
		})
	}
}

func TestGetLogger_PadsPrefix(t *testing.T) {
	entry := GetLogger("idx")
	prefix, ok := entry.Data["prefix"].(string)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(prefix), 10)
	assert.Equal(t, "idx", prefix[:3])
}

func TestInit_WritesLogFile(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "activity.log")

	require.NoError(t, Init(Options{Verbose: 1, File: logFile, Output: &buf}))
	t.Cleanup(func() {
		logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
		logrus.SetOutput(os.Stderr)
	})

	GetLogger("test").Info("hello from test")

	assert.Contains(t, buf.String(), "hello from test")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}
