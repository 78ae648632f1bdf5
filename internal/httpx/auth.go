package httpx

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleCashier Role = "Cashier"
	RoleBarista Role = "Barista"
	RoleManager Role = "Manager"
)

// Claims are issued by the account service; this API only verifies them.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

type Actor struct {
	ID       string
	Username string
	Role     Role
}

type contextKey string

const actorCtxKey contextKey = "actor"

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorCtxKey).(Actor)
	return a, ok
}

// Authenticate verifies the HS256 bearer token and puts its Actor on the context.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no token provided")
				return
			}

			var c Claims
			_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			id := c.UserID
			if id == "" {
				id = c.Subject
			}
			if id == "" || c.Role == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token has no user or role")
				return
			}

			ctx := context.WithValue(r.Context(), actorCtxKey, Actor{ID: id, Username: c.Username, Role: c.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := ActorFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if !slices.Contains(roles, a.Role) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "you do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
