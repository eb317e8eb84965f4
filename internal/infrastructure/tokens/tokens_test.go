package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpaqueTokensAreUnique(t *testing.T) {
	a, err := OpaqueIssuer{}.Issue(Grant{})
	require.NoError(t, err)
	b, err := OpaqueIssuer{}.Issue(Grant{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, OpaquePrefix))
	assert.Len(t, a, len(OpaquePrefix)+43)
	assert.NotEqual(t, a, b)
}

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWTIssuer("s3cret", "market")
	now := time.Now()
	tok, err := j.Issue(Grant{
		LeaseID: "l1", ResourceID: "res1", ConsumerActorID: "consumer",
		IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	claims, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "l1", claims.ID)
	assert.Equal(t, "res1", claims.ResourceID)
	assert.Equal(t, "consumer", claims.Subject)
}

func TestJWTRejectsExpiredAndForeign(t *testing.T) {
	j := NewJWTIssuer("s3cret", "market")
	past := time.Now().Add(-2 * time.Hour)
	tok, err := j.Issue(Grant{LeaseID: "l1", IssuedAt: past, ExpiresAt: past.Add(time.Minute)})
	require.NoError(t, err)
	_, err = j.Parse(tok)
	assert.ErrorIs(t, err, domain.ErrExpired)

	foreign, err := NewJWTIssuer("other", "market").Issue(Grant{LeaseID: "l1", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = j.Parse(foreign)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}
