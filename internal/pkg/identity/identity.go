// Package identity derives the local participant identity from the
// meeting access token. The token is verified by the backend; here it
// is only decoded for display, the way a browser client reads its own
// profile claims.
package identity

import (
	"errors"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"github.com/dkeye/Meet/internal/domain"
)

var ErrNoClaims = errors.New("token carries no identity claims")

// FromToken extracts {userId, displayName} from a JWT access token.
func FromToken(token string) (domain.Identity, error) {
	parser := jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return domain.Identity{}, err
	}

	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	if sub == "" || name == "" {
		return domain.Identity{}, ErrNoClaims
	}
	return domain.NewIdentity(domain.UserID(sub), name)
}

// Guest builds a throwaway identity for token-less sessions.
func Guest(displayName string) (domain.Identity, error) {
	if displayName == "" {
		displayName = "guest"
	}
	return domain.NewIdentity(domain.UserID(uuid.NewString()), displayName)
}
