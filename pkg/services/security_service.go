package services

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// exemptPaths は認証・レート制限を無条件で通過させるパスです。
var exemptPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
	"/docs":    true,
}

// SecurityService はAPIキー認証とレート制限を合成したゲートキーパーです。
// チェック順序: 免除パス → APIキー → レート制限 → ハンドラ。
type SecurityService struct {
	validKeys   map[string]bool
	authEnabled bool
	limiter     *RateLimiterService
}

// NewSecurityService 新しいゲートキーパーを作成
func NewSecurityService(apiKeys []string, limiter *RateLimiterService) *SecurityService {
	validKeys := make(map[string]bool, len(apiKeys))
	for _, k := range apiKeys {
		validKeys[k] = true
	}
	enabled := len(validKeys) > 0
	if enabled {
		log.Printf("APIキー認証を有効化（%d キー登録済み）", len(validKeys))
	} else {
		log.Println("APIキー認証は無効です")
	}
	return &SecurityService{
		validKeys:   validKeys,
		authEnabled: enabled,
		limiter:     limiter,
	}
}

// ValidateKey はAPIキーが許可リストに含まれるか判定します。
// 認証が無効な場合は常にtrueです。
func (s *SecurityService) ValidateKey(apiKey string) bool {
	if !s.authEnabled {
		return true
	}
	return s.validKeys[apiKey]
}

// ClientIdentity はレート制限用のクライアント識別子を導出します。
// APIキーがあればその先頭8文字、無ければ接続元IPを使います。
// この識別子は認可には使用しません。
func (s *SecurityService) ClientIdentity(c *gin.Context) string {
	apiKey := c.GetHeader("X-API-Key")
	if apiKey != "" {
		if len(apiKey) > 8 {
			apiKey = apiKey[:8]
		}
		return "key:" + apiKey
	}

	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		return "ip:" + strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return "ip:" + c.ClientIP()
}

// Middleware はリクエストゲートのGinミドルウェアを返します。
// 許可・拒否いずれの結果にもレート制限ヘッダを付与します。
func (s *SecurityService) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if exemptPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		// APIキー認証。レート制限より先に判定する。
		if s.authEnabled {
			apiKey := c.GetHeader("X-API-Key")
			if !s.ValidateKey(apiKey) {
				log.Printf("不正なAPIキーによるアクセス: %s", c.ClientIP())
				c.Header("WWW-Authenticate", "X-API-Key")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":  "Unauthorized",
					"detail": "Invalid or missing API key",
				})
				return
			}
		}

		// レート制限
		allowed, remaining, resetSeconds := s.limiter.Allow(s.ClientIdentity(c), time.Now())

		c.Header("X-RateLimit-Limit", strconv.Itoa(s.limiter.MaxRequests()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			log.Printf("レート制限超過: %s", c.ClientIP())
			c.Header("X-RateLimit-Reset", strconv.Itoa(resetSeconds))
			c.Header("Retry-After", strconv.Itoa(resetSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":  "TooManyRequests",
				"detail": "Rate limit exceeded. Try again in " + strconv.Itoa(resetSeconds) + " seconds.",
			})
			return
		}

		c.Next()
	}
}
