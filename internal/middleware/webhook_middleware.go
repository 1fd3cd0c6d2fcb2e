package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WebhookSecretHeader - заголовок с общим секретом платежного шлюза
const WebhookSecretHeader = "X-Webhook-Secret"

// RequireSharedSecret пропускает только запросы с верным общим секретом в заголовке header.
// Пустой секрет закрывает маршрут полностью.
func RequireSharedSecret(header, secret string) gin.HandlerFunc {
	if secret == "" {
		log.Printf("[Middleware] Секрет для заголовка %s не задан, все запросы будут отклонены", header)
	}
	expected := []byte(secret)
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if secret == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			log.Printf("[Middleware] Отклонен запрос %s %s: неверный секрет", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret", "error_type": "secret_invalid"})
			return
		}
		c.Next()
	}
}
