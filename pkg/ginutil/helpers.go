package ginutil

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// QueryTrimmed returns a query parameter with surrounding whitespace removed
func QueryTrimmed(c *gin.Context, key string) string {
	return strings.TrimSpace(c.Query(key))
}

// WantsJSON reports whether the client prefers JSON over HTML
func WantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}
