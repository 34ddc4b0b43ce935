package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jengzang/trailbloom-backend/pkg/response"
)

// AdminRole is the role claim required for admin endpoints
const AdminRole = "admin"

// Claims carried by admin tokens
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ClaimsKey is where the verified claims are stored on the gin context
const ClaimsKey = "claims"

// RequireAdmin verifies an HS256 bearer token with the admin role. An empty
// secret rejects every request.
func RequireAdmin(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		if len(key) == 0 {
			response.Unauthorized(c, "Admin API is disabled")
			return
		}

		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			response.Unauthorized(c, "Missing bearer token")
			return
		}

		claims := &Claims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token expired"
			}
			response.Unauthorized(c, msg)
			return
		}
		if claims.Role != AdminRole {
			response.Error(c, http.StatusForbidden, "Admin role required", nil)
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// SignAdminToken issues an admin token, used by the CLI and tests
func SignAdminToken(secret, subject string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: AdminRole, RegisteredClaims: claims})
	return token.SignedString([]byte(secret))
}
