package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header is the request id header, echoed back on every response.
const Header = "X-Request-ID"

const contextKey = "requestID"

// Middleware tags each request with an id, reusing the client-supplied one
// when present so ids stay stable across proxies.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// FromContext returns the id assigned to the current request, or an empty
// string outside the middleware chain.
func FromContext(c *gin.Context) string {
	id, _ := c.Value(contextKey).(string)
	return id
}
