package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.NotEmpty(t, v)
	assert.Equal(t, Version, v)
}

func TestGetFullVersion(t *testing.T) {
	full := GetFullVersion()
	assert.Contains(t, full, Version)
	assert.Contains(t, full, Commit)
	assert.Contains(t, full, "go")
}
