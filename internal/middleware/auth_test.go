package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"photo-studio-backend/internal/config"
	"photo-studio-backend/internal/middleware"
)

const testSecret = "test-secret-key-for-jwt-signing-must-be-long-enough"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return s
}

func newAuthRouter(mw gin.HandlerFunc, check func(c *gin.Context)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.GET("/test", func(c *gin.Context) {
		if check != nil {
			check(c)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func serve(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	cfg := &config.Config{SupabaseJWTSecret: testSecret}
	w := serve(newAuthRouter(middleware.AuthMiddleware(cfg), nil), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	cfg := &config.Config{SupabaseJWTSecret: testSecret}
	w := serve(newAuthRouter(middleware.AuthMiddleware(cfg), nil), "Bearer invalid-token")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	cfg := &config.Config{SupabaseJWTSecret: "another-secret"}
	token := signToken(t, jwt.MapClaims{"sub": "user-123", "role": "admin"})
	w := serve(newAuthRouter(middleware.AuthMiddleware(cfg), nil), "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_Expired(t *testing.T) {
	cfg := &config.Config{SupabaseJWTSecret: testSecret}
	token := signToken(t, jwt.MapClaims{
		"sub":  "user-123",
		"role": "admin",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})
	w := serve(newAuthRouter(middleware.AuthMiddleware(cfg), nil), "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "expired")
}

func TestAuthMiddleware_NotAdmin(t *testing.T) {
	cfg := &config.Config{SupabaseJWTSecret: testSecret}
	token := signToken(t, jwt.MapClaims{"sub": "user-123", "role": "authenticated"})
	w := serve(newAuthRouter(middleware.AuthMiddleware(cfg), nil), "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidAdminToken(t *testing.T) {
	cfg := &config.Config{SupabaseJWTSecret: testSecret}
	token := signToken(t, jwt.MapClaims{
		"sub":          "user-123",
		"role":         "authenticated",
		"app_metadata": map[string]interface{}{"role": "admin"},
	})

	router := newAuthRouter(middleware.AuthMiddleware(cfg), func(c *gin.Context) {
		userID, exists := c.Get(middleware.UserIDKey)
		assert.True(t, exists)
		assert.Equal(t, "user-123", userID)
		assert.True(t, middleware.IsAdmin(c))
	})
	w := serve(router, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOptionalAuth(t *testing.T) {
	cfg := &config.Config{SupabaseJWTSecret: testSecret}

	tests := []struct {
		name      string
		header    string
		wantAdmin bool
	}{
		{"anonymous", "", false},
		{"garbage token", "Bearer nope", false},
		{"non admin", "Bearer " + signToken(t, jwt.MapClaims{"sub": "u", "role": "authenticated"}), false},
		{"admin", "Bearer " + signToken(t, jwt.MapClaims{"sub": "u", "role": "admin"}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var isAdmin bool
			router := newAuthRouter(middleware.OptionalAuth(cfg), func(c *gin.Context) {
				isAdmin = middleware.IsAdmin(c)
			})
			w := serve(router, tt.header)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantAdmin, isAdmin)
		})
	}
}
