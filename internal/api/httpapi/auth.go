package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Claims is what the identity provider signs into the bearer token.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

type actorKey struct{}

// Authenticator verifies HS256 bearer tokens and turns them into an Actor.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Sign issues a token for actor; used by tooling and tests.
func (a *Authenticator) Sign(actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:  string(actor.Role),
		Email: actor.Email,
		Name:  actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

func (a *Authenticator) Parse(token string) (models.Actor, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return models.Actor{}, apperrors.Unauthorized("Invalid or expired token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return models.Actor{}, apperrors.Unauthorized("Invalid or expired token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Actor{}, apperrors.Unauthorized("Invalid token subject")
	}
	role, ok := models.ParseRole(claims.Role)
	if !ok {
		return models.Actor{}, apperrors.Unauthorized("Unknown account type")
	}
	return models.Actor{ID: id, Role: role, Email: claims.Email, Name: claims.Name}, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Missing bearer token"})
			return
		}
		actor, err := a.Parse(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: apperrors.PublicMessage(err, "Unauthorized")})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) models.Actor {
	actor, _ := ctx.Value(actorKey{}).(models.Actor)
	return actor
}
