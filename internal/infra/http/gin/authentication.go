package ginserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"staybook/internal/domain/access"
)

const principalContextKey = "staybook.principal"

var ErrTokenInvalid = errors.New("auth: invalid token")

// Claims are issued by the identity service: sub is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves an HS256 bearer token into a principal. Requests
// without a valid token continue anonymously; handlers decide whether that is enough.
type AuthMiddleware struct {
	Secret []byte
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || len(m.Secret) == 0 {
		c.Next()
		return
	}
	p, err := ParseToken(m.Secret, token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, p)
	c.Next()
}

// ParseToken verifies token and maps its claims to a principal. The system
// role is never accepted from a token.
func ParseToken(secret []byte, token string) (access.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return access.Principal{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return access.Principal{}, fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}
	role, err := access.ParseRole(claims.Role)
	if err != nil {
		return access.Principal{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	return access.Principal{UserID: claims.Subject, Role: role}, nil
}

// SignToken issues a token the middleware accepts. Used by tests and local tooling.
func SignToken(secret []byte, p access.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func setPrincipal(c *gin.Context, p access.Principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (access.Principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return access.Principal{}, false
	}
	p, ok := val.(access.Principal)
	return p, ok
}

// requirePrincipal answers 401 when the request is anonymous.
func requirePrincipal(c *gin.Context) (access.Principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok || p.Require() != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "auth required"})
		return access.Principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
