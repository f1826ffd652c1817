// Package identity wraps the Cognito user pool: token verification, the account
// directory used for deletions, and scoped sessions used to create accounts on
// behalf of another user.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

var ErrInvalidToken = errors.New("identity: invalid token")

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Groups []string
}

// Verifier validates Cognito ID tokens.
type Verifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	jwks     *keyfunc.JWKS
}

// NewVerifier fetches the pool's JWKS and keeps it refreshed until ctx ends.
func NewVerifier(ctx context.Context, jwksURL, issuer, audience string, log zerolog.Logger) (*Verifier, error) {
	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Msg("jwks refresh error")
		},
	}
	jwks, err := keyfunc.Get(jwksURL, options)
	if err != nil {
		return nil, fmt.Errorf("identity: load jwks: %w", err)
	}
	v := NewVerifierWithKeyfunc(jwks.Keyfunc, issuer, audience)
	v.jwks = jwks
	return v, nil
}

// NewVerifierWithKeyfunc builds a Verifier around an existing key source.
func NewVerifierWithKeyfunc(kf jwt.Keyfunc, issuer, audience string) *Verifier {
	return &Verifier{keyfunc: kf, issuer: issuer, audience: audience}
}

// Verify parses an ID token and returns its subject.
func (v *Verifier) Verify(tokenString string) (Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Principal{}, ErrInvalidToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc, opts...)
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if use, _ := claims["token_use"].(string); use != "" && use != "id" {
		return Principal{}, fmt.Errorf("%w: token_use %q", ErrInvalidToken, use)
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return Principal{}, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}

	p := Principal{UserID: sub}
	p.Email, _ = claims["email"].(string)
	if groups, ok := claims["cognito:groups"].([]any); ok {
		for _, g := range groups {
			if s, ok := g.(string); ok {
				p.Groups = append(p.Groups, s)
			}
		}
	}
	return p, nil
}

// Close stops the background JWKS refresh.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
