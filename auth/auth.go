// Package auth validates user-directory access tokens presented as the
// uat/urt cookie pair on HTTP requests.
package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"duel-game-server/users"
)

const (
	accessCookie  = "uat"
	refreshCookie = "urt"
)

// ErrNotConfigured is returned when neither a shared secret nor a JWKS
// URL is configured and no directory client is available.
var ErrNotConfigured = errors.New("auth: no token validation configured")

// Verifier resolves a request's cookies to the authenticated username.
// Tokens are checked locally first: against the directory's JWKS when a
// URL is configured, otherwise against the shared HS256 secret. When
// local validation fails the verifier falls back to asking the
// directory itself.
type Verifier struct {
	secret    []byte
	jwks      keyfunc.Keyfunc
	directory *users.Client
}

// NewVerifier builds a verifier. jwksURL and secret may each be empty;
// directory may be nil when no fallback is wanted.
func NewVerifier(secret, jwksURL string, directory *users.Client) (*Verifier, error) {
	v := &Verifier{directory: directory}
	if secret != "" {
		v.secret = []byte(secret)
	}
	if jwksURL != "" {
		jwks, err := keyfunc.NewDefault([]string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("loading JWKS: %w", err)
		}
		v.jwks = jwks
	}
	return v, nil
}

// UsernameFromToken validates an access token locally and returns the
// username claim.
func (v *Verifier) UsernameFromToken(tokenString string) (string, error) {
	var token *jwt.Token
	var err error

	switch {
	case v.jwks != nil:
		token, err = jwt.Parse(tokenString, v.jwks.Keyfunc)
	case v.secret != nil:
		token, err = jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			return v.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
	default:
		return "", ErrNotConfigured
	}
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	return usernameFromClaims(claims)
}

// UsernameFromRequest authenticates the request's cookie pair. Local
// validation is tried first; the directory fallback also covers token
// refresh on the directory side.
func (v *Verifier) UsernameFromRequest(r *http.Request) (string, error) {
	access, err := r.Cookie(accessCookie)
	if err != nil {
		return "", errors.New("missing access cookie")
	}

	if username, err := v.UsernameFromToken(access.Value); err == nil {
		return username, nil
	}

	if v.directory == nil {
		return "", ErrNotConfigured
	}
	refresh := ""
	if c, err := r.Cookie(refreshCookie); err == nil {
		refresh = c.Value
	}
	session, err := v.directory.GetUser(r.Context(), access.Value, refresh)
	if err != nil {
		return "", err
	}
	if session.User.Username == "" {
		return "", errors.New("directory returned no user")
	}
	return session.User.Username, nil
}

func usernameFromClaims(claims jwt.MapClaims) (string, error) {
	if username, ok := claims["username"].(string); ok && username != "" {
		return username, nil
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", errors.New("token carries no username")
}
