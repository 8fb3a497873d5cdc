package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/gin-gonic/gin"
)

// respondCached writes v as JSON with an ETag and answers 304 when the
// client already holds the same body.
func respondCached(c *gin.Context, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	tag := fmt.Sprintf(`"%016x"`, xxhash.Checksum64(body))
	c.Header("ETag", tag)
	c.Header("Cache-Control", "no-cache")

	if match := c.GetHeader("If-None-Match"); match != "" {
		for _, candidate := range strings.Split(match, ",") {
			candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
			if candidate == tag || candidate == "*" {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
