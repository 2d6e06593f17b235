package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "sensorium"

// Claims are the JWT claims carried by every issued token.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies bearer tokens over a process-wide HMAC secret.
// Rotating the secret invalidates every previously issued token.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithIssuerClock overrides the time source (useful for tests).
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer. The secret must be non-empty and the TTL
// positive; both come from configuration and absence of the secret is a
// startup error upstream.
func NewIssuer(secret []byte, ttl time.Duration, opts ...IssuerOption) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	iss := &Issuer{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// TTL returns the fixed validity duration of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token asserting username and role, valid from now for the
// configured TTL.
func (i *Issuer) Issue(username string, role Role) (string, time.Time, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", time.Time{}, ErrInvalidInput
	}
	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates a token and returns its claims. The three failure modes
// are distinct so the guard can report them differently: ErrTokenMalformed,
// ErrBadSignature and ErrTokenExpired.
func (i *Issuer) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMalformed
	}
	if _, err := ParseRole(string(claims.Role)); err != nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
