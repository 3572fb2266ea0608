package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignParse(t *testing.T) {
	token, err := Sign("42", []string{"edit_posts"}, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.True(t, claims.HasCapability("edit_posts"))
	assert.False(t, claims.HasCapability("manage_options"))
}

func TestParseRejects(t *testing.T) {
	expired, err := Sign("42", nil, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired)
	assert.Error(t, err)

	_, err = Parse("not.a.token")
	assert.Error(t, err)
}

func TestNilClaimsHaveNoCapabilities(t *testing.T) {
	var c *Claims
	assert.False(t, c.HasCapability("edit_posts"))
}
