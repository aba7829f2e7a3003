package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowedPath(t *testing.T) {
	assert.True(t, IsAllowedPath("/"))
	assert.True(t, IsAllowedPath("/login"))
	assert.True(t, IsAllowedPath("/logout"))
	assert.True(t, IsAllowedPath("/indoorvolleyball.refadmin/api%5crefereeconvocation/search"))
	assert.True(t, IsAllowedPath("/sportmanager.volleyball/main/dashboard"))
	assert.False(t, IsAllowedPath("/unknown/surface"))
}

func TestRequiresAPIPrefix(t *testing.T) {
	assert.True(t, RequiresAPIPrefix("/indoorvolleyball.refadmin/api%5crefereeconvocation/search"))
	assert.False(t, RequiresAPIPrefix("/indoorvolleyball.refadmin/refereestatementofexpenses/downloadrefereestatementofexpenses"))
	assert.True(t, RequiresAPIPrefix("/sportmanager.volleyball/authentication"))
	assert.False(t, RequiresAPIPrefix("/sportmanager.volleyball/main/dashboard"))
}

func TestInsertsAPISegmentPreservingRawEncoding(t *testing.T) {
	pathname := "/indoorvolleyball.refadmin/api%5crefereeconvocation/search"
	prefix := MatchedPrefix(pathname)
	needsAPI := RequiresAPIPrefix(pathname)

	rebuilt := prefix + "/api" + pathname[len(prefix):]
	assert.Equal(t, "/indoorvolleyball.refadmin/api/api%5crefereeconvocation/search", rebuilt)
	assert.True(t, needsAPI)
}
