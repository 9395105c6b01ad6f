// Package auth turns bearer tokens into users. Tokens are HS256 JWTs whose
// subject is the user id; the user itself is always reloaded from the store
// so that role changes apply immediately.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

// ErrTokenExpired is returned by Verify for expired tokens.
var ErrTokenExpired = fmt.Errorf("%w: token expired", tracking.ErrUnauthenticated)

// Claims are the JWT claims of an access token.
type Claims struct {
	Username string `json:"username"`
	Staff    bool   `json:"staff"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies access tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

func NewIssuer(secret, issuer string, ttl time.Duration, clk clock.Clock) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, clock: clk}
}

// Issue signs a token for u and returns it with its expiry.
func (i *Issuer) Issue(u tracking.User) (string, time.Time, error) {
	now := i.clock.Now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		Username: u.Username,
		Staff:    u.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			Issuer:    i.issuer,
			ID:        tracking.NewID(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer and validity window.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", tracking.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", tracking.ErrUnauthenticated)
	}
	return claims, nil
}

// =============================================================================
// AUTHENTICATOR
// =============================================================================

// Authenticator resolves an Authorization header to a stored user.
type Authenticator struct {
	issuer *Issuer
	users  tracking.UserStore
}

func NewAuthenticator(issuer *Issuer, users tracking.UserStore) *Authenticator {
	return &Authenticator{issuer: issuer, users: users}
}

// Authenticate returns (nil, nil) for an empty header, meaning anonymous.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*tracking.User, error) {
	if header == "" {
		return nil, nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: expected a bearer token", tracking.ErrUnauthenticated)
	}

	claims, err := a.issuer.Verify(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	u, err := a.users.GetUser(ctx, tracking.UserID(claims.Subject))
	if err != nil {
		if tracking.IsNotFound(err) {
			return nil, fmt.Errorf("%w: unknown user", tracking.ErrUnauthenticated)
		}
		return nil, err
	}
	return u, nil
}

// =============================================================================
// CONTEXT
// =============================================================================

type ctxKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u tracking.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (tracking.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(tracking.User)
	return u, ok
}
