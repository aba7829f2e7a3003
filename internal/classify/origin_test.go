package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAllowedOrigins(t *testing.T) {
	got := ParseAllowedOrigins(" https://app.example.org , https://admin.example.org,,")
	assert.Equal(t, []string{"https://app.example.org", "https://admin.example.org"}, got)
}

func TestValidateAllowedOrigins(t *testing.T) {
	require.NoError(t, ValidateAllowedOrigins([]string{"https://app.example.org", "http://localhost:3000"}))

	err := ValidateAllowedOrigins([]string{"https://app.example.org/path"})
	assert.Error(t, err)

	err = ValidateAllowedOrigins([]string{"ftp://app.example.org"})
	assert.Error(t, err)

	err = ValidateAllowedOrigins([]string{"https://app.example.org?x=1"})
	assert.Error(t, err)
}

func TestIsAllowedOrigin(t *testing.T) {
	list := []string{"https://App.Example.Org"}

	assert.True(t, IsAllowedOrigin("https://app.example.org", list))
	assert.True(t, IsAllowedOrigin("https://app.example.org/", list))
	assert.True(t, IsAllowedOrigin("HTTPS://APP.EXAMPLE.ORG", list))
	assert.False(t, IsAllowedOrigin("https://evil.example.org", list))
	assert.False(t, IsAllowedOrigin("", list))
}
