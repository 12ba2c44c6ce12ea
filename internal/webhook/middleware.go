package webhook

import (
	"crypto/subtle"
	"net/http"

	"crm_pipeline_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// SharedSecretMiddleware validates the X-Webhook-Secret header against the
// configured shared secret. Comparison is constant time.
func SharedSecretMiddleware(cfg config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := cfg.GetWebhookSharedSecret()
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "webhooks not configured"})
			return
		}

		provided := c.GetHeader("X-Webhook-Secret")
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing webhook secret"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}

		c.Next()
	}
}
