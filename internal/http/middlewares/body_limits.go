package middlewares

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func MaxBodyBytes(max int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Body != nil && max > 0 {
			ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)
		}

		ctx.Next()
	}
}

// RequireContentType rejects write requests whose media type is not one of
// the allowed ones (parameters like charset or boundary are ignored).
func RequireContentType(allowed ...string) gin.HandlerFunc {
	accept := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		accept[strings.ToLower(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))

			_, ok := accept[strings.ToLower(mediaType)]
			if err != nil || !ok {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error": gin.H{
						"code":      "unsupported_media_type",
						"message":   "Content-Type must be one of: " + strings.Join(allowed, ", "),
						"requestId": c.GetString(CtxRequestID),
					},
				})
				return
			}
		}
		c.Next()
	}
}
