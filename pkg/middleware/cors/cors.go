package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	allowedMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ", ")
	allowedHeaders = strings.Join([]string{
		"Content-Type", "X-Requested-With", "X-Request-ID", "X-Actor",
	}, ", ")
)

// New returns the CORS middleware. An empty origin list allows any origin
// without credentials; a non-empty list echoes only matching origins and
// allows credentials.
func New(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[canonicalOrigin(origin)] = struct{}{}
	}
	open := len(origins) == 0

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		if allow, ok := allowOrigin(origins, open, c.GetHeader("Origin")); ok {
			h.Set("Access-Control-Allow-Origin", allow)
			if !open {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		h.Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func allowOrigin(origins map[string]struct{}, open bool, origin string) (string, bool) {
	switch {
	case origin == "" && open:
		return "*", true
	case origin == "":
		return "", false
	case open:
		return origin, true
	}
	_, ok := origins[canonicalOrigin(origin)]
	return origin, ok
}

func canonicalOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
