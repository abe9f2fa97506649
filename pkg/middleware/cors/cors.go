package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowMethods   = "GET, POST, PUT, DELETE, OPTIONS"
	defaultHeaders = "Authorization, Content-Type, X-Request-ID"
	preflightAge   = "300"
)

// policy is the normalised origin allow-list. An entry of "*" (or an empty
// list) allows every origin; entries of the form "*.example.com" match any
// subdomain of example.com; everything else is matched exactly.
type policy struct {
	allowAll bool
	exact    map[string]struct{}
	suffixes []string
}

func newPolicy(origins []string) *policy {
	p := &policy{exact: make(map[string]struct{}, len(origins))}
	if len(origins) == 0 {
		p.allowAll = true
		return p
	}
	for _, origin := range origins {
		origin = canonical(origin)
		switch {
		case origin == "*":
			p.allowAll = true
		case strings.HasPrefix(origin, "*."):
			p.suffixes = append(p.suffixes, origin[1:])
		case origin != "":
			p.exact[origin] = struct{}{}
		}
	}
	return p
}

func (p *policy) allows(origin string) bool {
	if p.allowAll {
		return true
	}
	origin = canonical(origin)
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

func canonical(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}

// New builds the CORS middleware from the configured origin allow-list.
// Credentials are only offered to explicitly listed origins; a wildcard
// policy reflects the origin without them.
func New(allowedOrigins []string) gin.HandlerFunc {
	p := newPolicy(allowedOrigins)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		if origin := c.GetHeader("Origin"); origin != "" && p.allows(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			if !p.allowAll {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", allowMethods)
			if requested := c.GetHeader("Access-Control-Request-Headers"); requested != "" {
				h.Set("Access-Control-Allow-Headers", requested)
			} else {
				h.Set("Access-Control-Allow-Headers", defaultHeaders)
			}
			h.Set("Access-Control-Max-Age", preflightAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
