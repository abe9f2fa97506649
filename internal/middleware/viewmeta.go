package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hrline/dtr-api/pkg/middleware/requestid"
)

const viewMetaKey = "view_meta"

// viewMeta accumulates per-request metadata for the response envelope.
// Handlers flag cache outcomes through SetCacheHit; timing and request id
// are derived when the envelope is built.
type viewMeta struct {
	startedAt time.Time
	cacheHit  *bool
}

// WithResponseMeta attaches a metadata carrier to the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(viewMetaKey, &viewMeta{startedAt: time.Now()})
		c.Next()
	}
}

// SetCacheHit marks whether the responding view was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if m := metaCarrier(c); m != nil {
		m.cacheHit = &hit
	}
}

// ExtractMeta snapshots the accumulated metadata into the wire shape used
// by the response envelope. The cache flag only appears on views that went
// through SetCacheHit, so uncached endpoints stay free of it.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	m := metaCarrier(c)
	if m == nil {
		return nil
	}
	out := map[string]interface{}{
		"generated_at":       time.Now().UTC().Format(time.RFC3339),
		"processing_time_ms": time.Since(m.startedAt).Milliseconds(),
	}
	if id := requestid.Value(c); id != "" {
		out["request_id"] = id
	}
	if m.cacheHit != nil {
		out["cache"] = *m.cacheHit
	}
	return out
}

func metaCarrier(c *gin.Context) *viewMeta {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(viewMetaKey); ok {
		if m, ok := v.(*viewMeta); ok {
			return m
		}
	}
	return nil
}
