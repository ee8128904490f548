/*
auth.go - Bearer-token actor assertion

PURPOSE:
  The core trusts the API layer to assert WHO is calling. This file
  verifies a signed bearer token and places the asserted leave.Actor on
  the request context. Identity and role management (users, passwords,
  role grants) live in an external collaborator that mints the tokens;
  this layer only verifies the signature and lifts the claims.

TOKEN FORMAT:
  HS256 JWT with custom claims: actor id, role, department.

SEE ALSO:
  - handlers.go: Handlers pull the actor via ActorFromContext
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/leave-engine/leave"
)

type ctxKey int

const ctxKeyActor ctxKey = iota

// Claims carries the asserted actor identity inside the token.
type Claims struct {
	ActorID      string `json:"uid"`
	Role         string `json:"role"`
	DepartmentID string `json:"dept"`
	jwt.RegisteredClaims
}

// GenerateToken mints a signed token for an actor. Used by the identity
// collaborator and by tests.
func GenerateToken(secret string, actor leave.Actor, ttl time.Duration) (string, error) {
	claims := Claims{
		ActorID:      actor.ID,
		Role:         string(actor.Role),
		DepartmentID: actor.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Auth rejects requests without a valid bearer token and puts the
// asserted actor on the context for handlers.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.Split(header, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}
			claims, err := parseToken(secret, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", err)
				return
			}
			actor := leave.Actor{
				ID:           claims.ActorID,
				Role:         leave.Role(claims.Role),
				DepartmentID: claims.DepartmentID,
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyActor, actor)))
		})
	}
}

// ActorFromContext returns the actor asserted by the Auth middleware.
func ActorFromContext(ctx context.Context) (leave.Actor, bool) {
	actor, ok := ctx.Value(ctxKeyActor).(leave.Actor)
	return actor, ok
}
