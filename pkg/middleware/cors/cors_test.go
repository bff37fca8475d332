package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corsContext(t *testing.T, method, origin string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, "/api/v1/users", nil)
	require.NoError(t, err)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	c.Request = req
	return c, w
}

func TestCORSAllowedOrigin(t *testing.T) {
	mw := New([]string{"https://app.tutorlink.io/"})
	c, w := corsContext(t, http.MethodGet, "https://App.TutorLink.io")

	mw(c)

	assert.Equal(t, "https://App.TutorLink.io", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.False(t, c.IsAborted())
}

func TestCORSUnknownOrigin(t *testing.T) {
	mw := New([]string{"https://app.tutorlink.io"})
	c, w := corsContext(t, http.MethodGet, "https://evil.example.com")

	mw(c)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	mw := New(nil)
	c, w := corsContext(t, http.MethodOptions, "https://app.tutorlink.io")

	mw(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, c.IsAborted())
	assert.Equal(t, "https://app.tutorlink.io", w.Header().Get("Access-Control-Allow-Origin"))
}
