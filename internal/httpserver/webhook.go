package httpserver

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

const maxWebhookBody = 1 << 20

// WebhookConfig controls how gateway callbacks are authenticated.
// An empty Secret disables signature checks and an empty AllowedIPs accepts
// any source address. RateLimit is requests per second; zero means unlimited.
type WebhookConfig struct {
	Secret     string
	AllowedIPs []string
	RateLimit  float64
}

// webhookGuard rejects callbacks that are throttled, come from an address
// outside the allow-list, or carry a bad signature. The body is restored for
// the next handler.
func webhookGuard(cfg WebhookConfig, logger *log.Logger) gin.HandlerFunc {
	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = max(1, int(cfg.RateLimit))
	}
	limiter := rate.NewLimiter(limit, burst)

	allowed := make(map[string]struct{}, len(cfg.AllowedIPs))
	for _, ip := range cfg.AllowedIPs {
		allowed[strings.TrimSpace(ip)] = struct{}{}
	}

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[c.ClientIP()]; !ok {
				logger.Printf("webhook: rejected source ip=%s", c.ClientIP())
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "source not allowed"})
				return
			}
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}
		if cfg.Secret != "" && !validSignature(cfg.Secret, body, c.GetHeader(SignatureHeader)) {
			logger.Printf("webhook: bad signature ip=%s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// Sign returns the signature a gateway sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, header string) bool {
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	got, err := hex.DecodeString(header)
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}
