package shellcache

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// IsNavigation classifies a request as a navigation (a document load)
// versus a subresource fetch. Sec-Fetch-Mode is authoritative when
// present; otherwise an Accept header preferring HTML marks a
// navigation.
func IsNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// Handler returns a gin handler that intercepts shell requests through
// the cache. A nil snapshot (cache and network both failed on a
// subresource) answers 204 so a single missing asset does not surface
// an error page.
func Handler(cache *Cache, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path += "?" + c.Request.URL.RawQuery
		}

		snap, err := cache.Fetch(c.Request.Context(), c.Request.Method, path, IsNavigation(c.Request))
		if err != nil {
			log.WithError(err).WithField("path", path).Error("cache fetch failed")
			c.Status(http.StatusInternalServerError)
			return
		}
		if snap == nil {
			log.WithField("path", path).Debug("offline subresource miss")
			c.Status(http.StatusNoContent)
			return
		}

		for key, values := range snap.Header {
			for _, v := range values {
				c.Writer.Header().Add(key, v)
			}
		}
		c.Status(snap.Status)
		c.Writer.Write(snap.Body)
	}
}
