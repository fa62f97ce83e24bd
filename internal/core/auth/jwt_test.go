package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueParse(t *testing.T) {
	j := &JWTer{Secret: []byte("s"), Issuer: "library", TTL: time.Hour}
	tok, err := j.Issue(42, RoleAdmin)
	require.NoError(t, err)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, c.Role)
	id, err := c.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestParse_Rejects(t *testing.T) {
	j := &JWTer{Secret: []byte("s"), Issuer: "library", TTL: time.Hour}
	tok, err := j.Issue(1, RoleUser)
	require.NoError(t, err)

	other := &JWTer{Secret: []byte("other"), Issuer: "library", TTL: time.Hour}
	_, err = other.Parse(tok)
	assert.Error(t, err)

	wrongIss := &JWTer{Secret: []byte("s"), Issuer: "else", TTL: time.Hour}
	_, err = wrongIss.Parse(tok)
	assert.Error(t, err)

	old := &JWTer{Secret: []byte("s"), Issuer: "library", TTL: time.Minute,
		Now: func() time.Time { return time.Now().Add(-time.Hour) }}
	expired, err := old.Issue(1, RoleUser)
	require.NoError(t, err)
	_, err = j.Parse(expired)
	assert.Error(t, err)
}
