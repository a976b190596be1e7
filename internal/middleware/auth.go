package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"photo-studio-backend/internal/config"
	"photo-studio-backend/internal/models"
)

const (
	UserIDKey  = "user_id"
	IsAdminKey = "is_admin"

	adminRole = "admin"
)

var (
	errMissingToken = errors.New("missing authorization header")
	errBadHeader    = errors.New("invalid authorization header format")
	errNoSubject    = errors.New("missing user id in token")
)

// AuthMiddleware requires a valid Supabase JWT carrying the admin role.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parseBearer(c.GetHeader("Authorization"), cfg.SupabaseJWTSecret)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}
		if !hasAdminRole(claims) {
			abortUnauthorized(c, errors.New("admin role required"))
			return
		}

		c.Set(UserIDKey, claims.sub)
		c.Set(IsAdminKey, true)
		c.Next()
	}
}

// OptionalAuth marks the request as admin when a valid admin JWT is present
// and otherwise lets it through untouched. Routes using it authorise callers
// by other means (the order's public token).
func OptionalAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(IsAdminKey, false)

		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		claims, err := parseBearer(header, cfg.SupabaseJWTSecret)
		if err == nil {
			c.Set(UserIDKey, claims.sub)
			c.Set(IsAdminKey, hasAdminRole(claims))
		}
		c.Next()
	}
}

// IsAdmin reports whether an auth middleware accepted an admin credential.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(IsAdminKey)
}

type tokenClaims struct {
	sub    string
	claims jwt.MapClaims
}

func parseBearer(authHeader, secret string) (*tokenClaims, error) {
	if authHeader == "" {
		return nil, errMissingToken
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errBadHeader
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, errors.New("empty token")
	}

	// Try URL decoding in case the token was URL-encoded
	if decoded, err := url.QueryUnescape(tokenString); err == nil {
		tokenString = decoded
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		if secret == "" {
			return nil, jwt.ErrSignatureInvalid
		}
		// Supabase JWT secret is used directly as the signing key
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, errors.New("token has expired")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("token signature is invalid")
		default:
			return nil, err
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errNoSubject
	}
	return &tokenClaims{sub: sub, claims: claims}, nil
}

// hasAdminRole accepts the role either as a top-level custom claim or under
// app_metadata, where Supabase keeps claims set by the service role.
func hasAdminRole(t *tokenClaims) bool {
	if role, ok := t.claims["role"].(string); ok && role == adminRole {
		return true
	}
	meta, ok := t.claims["app_metadata"].(map[string]interface{})
	if !ok {
		return false
	}
	role, _ := meta["role"].(string)
	return role == adminRole
}

func abortUnauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Code:    "UNAUTHORIZED",
		Message: err.Error(),
	})
}
