package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zaptest"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "info", want: zapcore.InfoLevel},
		{in: "debug", want: zapcore.DebugLevel},
		{in: "warn", want: zapcore.WarnLevel},
		{in: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lvl, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, lvl.Level())
		})
	}
}

func TestCreateLoggerWithFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "portbounce.log")

	lvl, err := ParseLogLevel("info")
	require.NoError(t, err)

	l := CreateLogger(lvl, logFile)
	l.Infow("hello", "port", "12")
	require.NoError(t, l.Sync())

	b, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"port":"12"`)
}

func TestSetLoggerNil(t *testing.T) {
	prev := NewFromZap(Logger.Desugar())
	defer SetLogger(prev)

	SetLogger(nil)
	assert.NotPanics(t, func() {
		Logger.Infow("discarded")
	})

	SetLogger(NewFromZap(zaptest.NewLogger(t)))
	assert.NotPanics(t, func() {
		Logger.Warnw("visible", "k", "v")
	})
}

func TestNilRunLogger(t *testing.T) {
	var l *runLogger
	assert.NotPanics(t, func() {
		l.Errorw("nil logger is a no-op")
	})
}

func TestCallerIsCallSite(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core, zap.AddCaller()))

	l.Infow("wrapped")
	l.With("port", "12").Infow("derived")
	l.Desugar().Info("desugared")

	entries := logs.All()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.True(t, e.Caller.Defined, e.Message)
		assert.Equal(t, "log_test.go", filepath.Base(e.Caller.File), e.Message)
	}
}
