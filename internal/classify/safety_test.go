package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPathSafe(t *testing.T) {
	assert.True(t, IsPathSafe("/indoorvolleyball.refadmin/api%5crefereeconvocation/search"))
	assert.True(t, IsPathSafe("/login"))

	assert.False(t, IsPathSafe("/../etc/passwd"))
	assert.False(t, IsPathSafe("/%2e%2e/etc/passwd"))
	assert.False(t, IsPathSafe("//evil"))
	assert.False(t, IsPathSafe("/foo%00bar"))
	assert.False(t, IsPathSafe("/%zz"))
}
