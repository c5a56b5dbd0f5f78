package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func keyedRouter(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/print", APIKeyAuth(apiKey, testLogger()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAPIKeyAuth(t *testing.T) {
	r := keyedRouter("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/print", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing key")

	req = httptest.NewRequest(http.MethodPost, "/print", nil)
	req.Header.Set("x-api-key", "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "wrong key")

	req = httptest.NewRequest(http.MethodPost, "/print", nil)
	req.Header.Set("x-api-key", "s3cret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthDisabledWhenUnset(t *testing.T) {
	r := keyedRouter("")

	req := httptest.NewRequest(http.MethodPost, "/print", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "empty key disables the check")
}
