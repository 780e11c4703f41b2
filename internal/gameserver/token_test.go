package gameserver

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/corsair/internal/game/session"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	f := newFixture(t)
	info := session.Info{ID: "sid-1", AccountID: 42, ExpiresAt: f.now.Add(time.Hour)}

	token, err := f.tokens.Issue(info)
	require.NoError(t, err)
	sid, accountID, err := f.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", sid)
	assert.Equal(t, int64(42), accountID)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	f := newFixture(t)
	token, err := f.tokens.Issue(session.Info{ID: "sid-1", AccountID: 42, ExpiresAt: f.now.Add(time.Minute)})
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Minute)
	_, _, err = f.tokens.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenIssuer_RejectsForgeries(t *testing.T) {
	f := newFixture(t)
	info := session.Info{ID: "sid-1", AccountID: 42, ExpiresAt: f.now.Add(time.Hour)}
	token, err := f.tokens.Issue(info)
	require.NoError(t, err)

	other := NewTokenIssuer(strings.Repeat("z", 32), func() time.Time { return f.now })
	forged, err := other.Issue(info)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"iss": tokenIssuer, "jti": "sid-1", "aid": 42, "exp": f.now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"wrong secret": forged,
		"tampered":     tampered,
		"alg none":     none,
		"garbage":      "not-a-token",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.tokens.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenIssuer_RequiresSessionClaims(t *testing.T) {
	f := newFixture(t)
	token, err := f.tokens.Issue(session.Info{AccountID: 42, ExpiresAt: f.now.Add(time.Hour)})
	require.NoError(t, err)
	_, _, err = f.tokens.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
