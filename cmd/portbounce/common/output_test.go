package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputFormat(t *testing.T) {
	for raw, want := range map[string]string{
		"":       OutputFormatPlain,
		"plain":  OutputFormatPlain,
		" JSON ": OutputFormatJSON,
	} {
		got, err := ParseOutputFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestExitError(t *testing.T) {
	err := NewExitError("FAIL: failed ports 12", 1)
	assert.Equal(t, "FAIL: failed ports 12", err.Error())
	assert.Equal(t, 1, err.ExitStatus())

	assert.Equal(t, 1, NewExitError("x", 0).ExitStatus())
	assert.Equal(t, 2, NewExitError("ERROR: aborted", 2).ExitStatus())
}
