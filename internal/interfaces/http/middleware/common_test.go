package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labdocs/backend/internal/infrastructure/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	var ginID, ctxID string
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		ginID = GetRequestID(c)
		ctxID = logger.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, ginID)
		assert.Equal(t, id, ctxID)
	})

	t.Run("keeps the caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "lab-job-7")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "lab-job-7", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "lab-job-7", ctxID)
	})

	t.Run("replaces an invalid id", func(t *testing.T) {
		for _, bad := range []string{strings.Repeat("x", MaxRequestIDLength+1), "has space", "tab\tid"} {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(RequestIDHeader, bad)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.NotEqual(t, bad, w.Header().Get(RequestIDHeader))
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		}
	})
}

func TestGetRequestID_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetRequestID(c))
}

func TestCORS(t *testing.T) {
	newRouter := func(cfg CORSConfig) *gin.Engine {
		router := gin.New()
		router.Use(CORSWithConfig(cfg))
		router.POST("/docs", func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}

	t.Run("no origins configured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/docs", nil)
		req.Header.Set("Origin", "https://lis.example.com")
		w := httptest.NewRecorder()
		newRouter(DefaultCORSConfig()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origin", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"https://lis.example.com"}
		cfg.AllowCredentials = true

		req := httptest.NewRequest(http.MethodPost, "/docs", nil)
		req.Header.Set("Origin", "https://lis.example.com")
		w := httptest.NewRecorder()
		newRouter(cfg).ServeHTTP(w, req)

		assert.Equal(t, "https://lis.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Page-Count")
		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("unlisted origin", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"https://lis.example.com"}

		req := httptest.NewRequest(http.MethodPost, "/docs", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		newRouter(cfg).ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard never sends credentials", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"*"}
		cfg.AllowCredentials = true

		req := httptest.NewRequest(http.MethodPost, "/docs", nil)
		req.Header.Set("Origin", "https://any.example.com")
		w := httptest.NewRecorder()
		newRouter(cfg).ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"*"}

		req := httptest.NewRequest(http.MethodOptions, "/docs", nil)
		req.Header.Set("Origin", "https://any.example.com")
		w := httptest.NewRecorder()
		newRouter(cfg).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)
	})
}

func TestSecure(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		router := gin.New()
		router.Use(Secure())
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("hsts", func(t *testing.T) {
		cfg := DefaultSecurityConfig()
		cfg.HSTSEnabled = true
		cfg.HSTSMaxAge = 600

		router := gin.New()
		router.Use(SecureWithConfig(cfg))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, "max-age=600; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
	})
}
