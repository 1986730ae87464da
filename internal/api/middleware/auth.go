package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/api/types"
	"github.com/rfp-studio/engine/internal/models"
	appErr "github.com/rfp-studio/engine/pkg/errors"
)

type userKeyType string

const UserKey userKeyType = "user"

// TokenParser validates a bearer token and returns its subject.
type TokenParser interface {
	Parse(token string) (uuid.UUID, error)
}

// UserResolver loads the user a token was issued to.
type UserResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Auth validates a Bearer token, resolves its user and stores it in the request context.
// Unknown users are rejected with 401 and inactive ones with 403.
func Auth(tokens TokenParser, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				deny(w, http.StatusUnauthorized, appErr.CodeUnauthorized, "not authenticated")
				return
			}
			uid, err := tokens.Parse(strings.TrimSpace(ah[len("Bearer "):]))
			if err != nil {
				deny(w, http.StatusUnauthorized, appErr.CodeUnauthorized, "could not validate credentials")
				return
			}
			u, err := users.Resolve(r.Context(), uid)
			if err != nil {
				if appErr.IsCode(err, appErr.CodeNotFound) {
					deny(w, http.StatusUnauthorized, appErr.CodeUnauthorized, "could not validate credentials")
					return
				}
				deny(w, http.StatusInternalServerError, appErr.CodeInternal, "internal server error")
				return
			}
			if !u.IsActive {
				deny(w, http.StatusForbidden, appErr.CodeForbidden, "inactive user")
				return
			}
			ctx := context.WithValue(r.Context(), UserKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser returns a copy of ctx carrying u, as Auth does.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, UserKey, u)
}

// GetUser returns the authenticated user, or nil outside Auth.
func GetUser(ctx context.Context) *models.User {
	if u, ok := ctx.Value(UserKey).(*models.User); ok {
		return u
	}
	return nil
}

func GetUserID(ctx context.Context) uuid.UUID {
	if u := GetUser(ctx); u != nil {
		return u.ID
	}
	return uuid.Nil
}

func deny(w http.ResponseWriter, status int, code appErr.Code, msg string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.APIResponse{Success: false, Error: &types.APIError{Code: string(code), Message: msg}})
}
