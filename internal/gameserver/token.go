package gameserver

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cory-johannsen/corsair/internal/game/session"
)

const tokenIssuer = "corsair"

// ErrInvalidToken is returned for a session token that is malformed, forged or expired.
var ErrInvalidToken = errors.New("invalid session token")

// sessionClaims binds a token to one server-side session.
type sessionClaims struct {
	jwt.RegisteredClaims
	AccountID int64 `json:"aid"`
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. A nil clock selects time.Now.
//
// Precondition: secret must be at least 32 bytes.
func NewTokenIssuer(secret string, clock func() time.Time) *TokenIssuer {
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), now: clock}
}

// Issue returns a signed token for info that expires with the session.
func (ti *TokenIssuer) Issue(info session.Info) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(info.AccountID, 10),
			ID:        info.ID,
			IssuedAt:  jwt.NewNumericDate(ti.now()),
			ExpiresAt: jwt.NewNumericDate(info.ExpiresAt),
		},
		AccountID: info.AccountID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Verify checks token and returns the session id and account it was issued for.
//
// Postcondition: Returns ErrInvalidToken for any signature, algorithm, issuer or expiry failure.
func (ti *TokenIssuer) Verify(token string) (sid string, accountID int64, err error) {
	var claims sessionClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.AccountID == 0 {
		return "", 0, fmt.Errorf("%w: missing session claims", ErrInvalidToken)
	}
	return claims.ID, claims.AccountID, nil
}
