package middleware

import (
	"net/http"
	"strings"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by Authenticate.
const (
	CtxUserID = "auth.userID"
	CtxUser   = "auth.user"
)

type Authz struct {
	secret   []byte
	issuer   string
	audience string
	users    usecase.UserRepo
}

func NewAuthz(secret, issuer, audience string, users usecase.UserRepo) *Authz {
	return &Authz{secret: []byte(secret), issuer: issuer, audience: audience, users: users}
}

// Authenticate verifies the bearer token and loads the account behind
// it. A valid token for a deleted account is still a 401.
func (a *Authz) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		}, jwt.WithLeeway(30*time.Second)) // small clock skew

		if err != nil || !token.Valid {
			unauth(c, "invalid_token", "invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauth(c, "invalid_token", "claims parsing error")
			return
		}
		if claims["iss"] != a.issuer || claims["aud"] != a.audience {
			unauth(c, "invalid_token", "iss/aud mismatch")
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			unauth(c, "invalid_token", "missing subject")
			return
		}

		u, err := a.users.GetByID(c.Request.Context(), sub)
		if err != nil {
			unauth(c, "invalid_token", "account no longer exists")
			return
		}

		c.Set(CtxUserID, u.ID)
		c.Set(CtxUser, u)
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func (a *Authz) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := c.Get(CtxUser)
		if !ok {
			unauth(c, "invalid_request", "authentication required")
			return
		}
		user, ok := u.(*domain.User)
		if !ok || !user.IsAdmin() {
			forbidden(c, "insufficient_scope", "admin privileges required")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user's id set by Authenticate.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code, "error_description": desc})
}
