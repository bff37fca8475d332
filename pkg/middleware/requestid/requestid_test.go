package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareAssignsID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, "/health", nil)
	require.NoError(t, err)
	c.Request = req

	Middleware()(c)

	id := FromContext(c)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, w.Header().Get(Header))
}

func TestMiddlewareKeepsClientID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, "/health", nil)
	require.NoError(t, err)
	req.Header.Set(Header, "req-upstream-7")
	c.Request = req

	Middleware()(c)

	assert.Equal(t, "req-upstream-7", FromContext(c))
	assert.Equal(t, "req-upstream-7", w.Header().Get(Header))
}
