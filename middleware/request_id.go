package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cppla/blogdeck/utils"
)

// RequestID reuses the caller's X-Request-ID or assigns a new one, and stores it on
// both the gin context and the request context so it reaches the blog API.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(utils.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(utils.RequestIDKey, id)
		c.Request = c.Request.WithContext(utils.WithRequestID(c.Request.Context(), id))
		c.Header(utils.RequestIDHeader, id)
		c.Next()
	}
}
