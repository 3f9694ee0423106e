package log

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestAuditLogApplyOpts(t *testing.T) {
	t.Run("applies all options correctly", func(t *testing.T) {
		al := &AuditLog{}
		al.applyOpts([]AuditOption{
			WithKind("TestKind"),
			WithAuditID("test-audit-id"),
			WithRunID("run-1"),
			WithSwitch("10.0.0.10"),
			WithStage(AuditStageSent),
			WithVerb("disable"),
			WithCommand("portdisable 12"),
			WithData([]string{"12"}),
		})

		assert.Equal(t, "TestKind", al.Kind)
		assert.Equal(t, "test-audit-id", al.AuditID)
		assert.Equal(t, "run-1", al.RunID)
		assert.Equal(t, "10.0.0.10", al.Switch)
		assert.Equal(t, AuditStageSent, al.Stage)
		assert.Equal(t, "disable", al.Verb)
		assert.Equal(t, "portdisable 12", al.Command)
		assert.Equal(t, []string{"12"}, al.Data)
	})

	t.Run("sets default values when options not provided", func(t *testing.T) {
		al := &AuditLog{}
		al.applyOpts(nil)

		assert.Equal(t, "SwitchCommand", al.Kind)
		_, err := uuid.Parse(al.AuditID)
		assert.NoError(t, err)
	})
}

func TestAuditLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := newAuditLogger(zapcore.AddSync(&buf), WithRunID("run-1"), WithSwitch("10.0.0.10"))

	l.Log(WithStage(AuditStageSent), WithVerb("enable"), WithCommand("portenable 12,13"))
	l.Log(WithStage(AuditStageRejected), WithVerb("enable"), WithCommand("portenable 12,13"), WithData("port 13 is not licensed"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second AuditLog
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "10.0.0.10", first.Switch)
	assert.Equal(t, AuditStageSent, first.Stage)
	assert.Equal(t, "portenable 12,13", first.Command)
	assert.Nil(t, first.Data)

	assert.Equal(t, "run-1", second.RunID)
	assert.Equal(t, AuditStageRejected, second.Stage)
	assert.Equal(t, "port 13 is not licensed", second.Data)
	assert.NotEqual(t, first.AuditID, second.AuditID)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &raw))
	assert.Contains(t, raw, "ts")
	assert.NotContains(t, raw, "level")
}

func TestNopAuditLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNopAuditLogger().Log(WithStage(AuditStageSent))
	})
}

func TestNewAuditLoggerFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "portbounce.audit")
	l := NewAuditLogger(p, WithRunID("run-2"))
	l.Log(WithStage(AuditStageCompleted), WithVerb("disable"))
	assert.FileExists(t, p)
}

func TestCreateAuditLogFilepath(t *testing.T) {
	assert.Equal(t, "/var/log/portbounce.audit", CreateAuditLogFilepath("/var/log/portbounce.log"))
	assert.Equal(t, "/tmp/portbounce.audit", CreateAuditLogFilepath("/tmp/portbounce"))
}
