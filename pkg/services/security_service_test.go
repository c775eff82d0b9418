package services

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// newGatedRouter はゲートキーパーを適用したテスト用ルーターを構築します。
func newGatedRouter(apiKeys []string, limiter *RateLimiterService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	security := NewSecurityService(apiKeys, limiter)

	router := gin.New()
	router.Use(security.Middleware())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.POST("/api/v1/predict", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestSecurityRejectsMissingAPIKey(t *testing.T) {
	router := newGatedRouter([]string{"secret-key"}, NewRateLimiterService(100, 60, true))

	req, _ := http.NewRequest("POST", "/api/v1/predict", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthorized")
	assert.Equal(t, "X-API-Key", w.Header().Get("WWW-Authenticate"))
}

func TestSecurityRejectsWrongAPIKey(t *testing.T) {
	router := newGatedRouter([]string{"secret-key"}, NewRateLimiterService(100, 60, true))

	req, _ := http.NewRequest("POST", "/api/v1/predict", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSecurityAcceptsValidAPIKey(t *testing.T) {
	router := newGatedRouter([]string{"secret-key", "another-key"}, NewRateLimiterService(100, 60, true))

	req, _ := http.NewRequest("POST", "/api/v1/predict", nil)
	req.Header.Set("X-API-Key", "another-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// 許可されたレスポンスにもレート制限ヘッダが付く
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))
}

func TestSecurityDisabledWhenNoKeysConfigured(t *testing.T) {
	router := newGatedRouter(nil, NewRateLimiterService(100, 60, true))

	req, _ := http.NewRequest("POST", "/api/v1/predict", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityExemptPathsBypassAuth(t *testing.T) {
	router := newGatedRouter([]string{"secret-key"}, NewRateLimiterService(100, 60, true))

	// ヘルスチェックはAPIキー無しでも通過する
	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// 免除パスにはレート制限ヘッダも付かない
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestSecurityRateLimitExceeded(t *testing.T) {
	router := newGatedRouter(nil, NewRateLimiterService(2, 60, true))

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("POST", "/api/v1/predict", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// 3回目は429で、リセットのヒントが返る
	req, _ := http.NewRequest("POST", "/api/v1/predict", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "TooManyRequests")
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestSecurityAuthCheckedBeforeRateLimit(t *testing.T) {
	// 上限1のリミッタでも、不正キーのリクエストは枠を消費しない
	limiter := NewRateLimiterService(1, 60, true)
	router := newGatedRouter([]string{"secret-key"}, limiter)

	req, _ := http.NewRequest("POST", "/api/v1/predict", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ = http.NewRequest("POST", "/api/v1/predict", nil)
	req.Header.Set("X-API-Key", "secret-key")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	security := NewSecurityService(nil, NewRateLimiterService(100, 60, true))

	newContext := func() (*gin.Context, *http.Request) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		req, _ := http.NewRequest("POST", "/api/v1/predict", nil)
		c.Request = req
		return c, req
	}

	// APIキーがあれば先頭8文字で識別する
	c, req := newContext()
	req.Header.Set("X-API-Key", "abcdefgh-rest-of-key")
	assert.Equal(t, "key:abcdefgh", security.ClientIdentity(c))

	// 短いキーはそのまま
	c, req = newContext()
	req.Header.Set("X-API-Key", "short")
	assert.Equal(t, "key:short", security.ClientIdentity(c))

	// X-Forwarded-For の先頭IPを優先する
	c, req = newContext()
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.7", security.ClientIdentity(c))
}
