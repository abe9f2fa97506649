package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corsRequest(t *testing.T, origins []string, method, origin string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, err := http.NewRequest(method, "/ping", nil)
	require.NoError(t, err)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for key, values := range header {
		req.Header[key] = values
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSListedOriginGetsCredentials(t *testing.T) {
	w := corsRequest(t, []string{"https://hr.example.com"}, http.MethodGet, "https://hr.example.com", nil)

	assert.Equal(t, "https://hr.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSUnlistedOriginIsIgnored(t *testing.T) {
	w := corsRequest(t, []string{"https://hr.example.com"}, http.MethodGet, "https://evil.example.net", nil)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSSubdomainWildcard(t *testing.T) {
	w := corsRequest(t, []string{"*.example.com"}, http.MethodGet, "https://payroll.example.com", nil)

	assert.Equal(t, "https://payroll.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardReflectsWithoutCredentials(t *testing.T) {
	w := corsRequest(t, nil, http.MethodGet, "https://anywhere.test", nil)

	assert.Equal(t, "https://anywhere.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflightEchoesRequestedHeaders(t *testing.T) {
	header := http.Header{"Access-Control-Request-Headers": []string{"Authorization, X-Custom"}}
	w := corsRequest(t, []string{"https://hr.example.com"}, http.MethodOptions, "https://hr.example.com", header)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "Authorization, X-Custom", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}
