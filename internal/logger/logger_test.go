package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BearBump/DispatchBox/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelAndFormat(t *testing.T) {
	l := New(config.LoggerConfig{Level: "debug", Format: "json"})
	require.Equal(t, logrus.DebugLevel, l.GetLevel())
	_, ok := l.Formatter.(*logrus.JSONFormatter)
	require.True(t, ok)

	l = New(config.LoggerConfig{Level: "bogus"})
	require.Equal(t, logrus.InfoLevel, l.GetLevel())
	_, ok = l.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
}

func TestNew_TeesToFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "app.log")
	l := New(config.LoggerConfig{Level: "info", Format: "json", File: p})
	l.WithField("tracking_id", "ORD0001").Info("created")

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Contains(t, string(data), `"tracking_id":"ORD0001"`)
}
