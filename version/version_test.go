package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	origRevision, origBuild := Revision, BuildTimestamp
	defer func() {
		Revision, BuildTimestamp = origRevision, origBuild
	}()

	Revision, BuildTimestamp = "", ""
	assert.Equal(t, Package+" "+Version+" "+GoVersion, String())

	Revision, BuildTimestamp = "abc123", "2026-10-01T00:00:00Z"
	assert.Equal(t, Package+" "+Version+" (abc123) built 2026-10-01T00:00:00Z "+GoVersion, String())
}
