package api

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleCitizen Role = "citizen"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

func (r Role) valid() bool {
	return r == RoleCitizen || r == RoleStaff || r == RoleAdmin
}

// Principal is the authenticated caller.
type Principal struct {
	Subject      string
	Role         Role
	DepartmentID string
}

func (p Principal) IsStaff() bool {
	return p.Role == RoleStaff || p.Role == RoleAdmin
}

// CanAccessCitizen reports whether p may read or act on records owned by citizenID.
func (p Principal) CanAccessCitizen(citizenID string) bool {
	return p.IsStaff() || p.Subject == citizenID
}

type PrincipalClaims struct {
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

const principalKey contextKey = "principal"

// Authenticate enforces an HMAC-signed bearer token and stores the Principal on the context.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication is not configured")
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := PrincipalClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" || !claims.Role.valid() {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			p := Principal{Subject: claims.Subject, Role: claims.Role, DepartmentID: claims.DepartmentID}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects principals whose role is not listed.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || !slices.Contains(roles, p.Role) {
				writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// SignToken issues a principal token. Used by the seed tool and tests.
func SignToken(secret string, p Principal, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = p.Subject
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, PrincipalClaims{
		Role:             p.Role,
		DepartmentID:     p.DepartmentID,
		RegisteredClaims: claims,
	})
	return token.SignedString([]byte(secret))
}
