// Tests for navigation classification and the gin interception handler.
package shellcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/aegis/pkg/logger"
)

func TestIsNavigation(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{"sec-fetch navigate", map[string]string{"Sec-Fetch-Mode": "navigate"}, true},
		{"sec-fetch no-cors", map[string]string{"Sec-Fetch-Mode": "no-cors", "Accept": "text/html"}, false},
		{"accept html", map[string]string{"Accept": "text/html,application/xhtml+xml"}, true},
		{"accept script", map[string]string{"Accept": "*/*"}, false},
		{"no headers", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, IsNavigation(req))
		})
	}
}

func TestHandler_ServesFromCacheWhileOffline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	origin, _ := newOrigin(t)
	cache := openCache(t, t.TempDir(), origin.URL, "g1")
	require.NoError(t, cache.Install(context.Background(), nil))
	require.NoError(t, cache.Activate())
	origin.Close()

	router := gin.New()
	router.NoRoute(Handler(cache, logger.Discard()))

	// Navigation with no cache match falls back to the entry page.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/new", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>shell</html>", w.Body.String())

	// Subresource miss answers 204, not an error page.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/stale.js", nil)
	req.Header.Set("Accept", "*/*")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandler_PropagatesSnapshotHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	origin, _ := newOrigin(t)
	cache := openCache(t, t.TempDir(), origin.URL, "g1")
	require.NoError(t, cache.Install(context.Background(), nil))

	router := gin.New()
	router.NoRoute(Handler(cache, logger.Discard()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/manifest.json", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"name":"aegis"}`, w.Body.String())
}
