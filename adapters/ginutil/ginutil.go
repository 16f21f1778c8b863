// Package ginutil holds small helpers shared by the gin operation handlers.
package ginutil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Rate-limit bucket names, one per connector operation.
const (
	RLOpTestConnection   = "op_test_connection"
	RLOpListEntitlements = "op_list_entitlements"
	RLOpListAccounts     = "op_list_accounts"
	RLOpCreateAccount    = "op_create_account"
	RLOpUpdateAccount    = "op_update_account"
)

// RateLimiter is the minimal limiter interface the handlers need. Both the
// memory and redis limiters implement it.
type RateLimiter interface {
	AllowNamed(bucket, key string) (bool, error)
}

// AllowNamed consults rl for the request's client IP. A nil limiter or a
// limiter error allows the request.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ok, err := rl.AllowNamed(bucket, c.ClientIP())
	if err != nil {
		return true
	}
	return ok
}

// TooMany writes a 429 response.
func TooMany(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}

// BadRequest writes a 400 response with an error code.
func BadRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code})
}

// NotFound writes a 404 response with an error code.
func NotFound(c *gin.Context, code string) {
	c.JSON(http.StatusNotFound, gin.H{"error": code})
}

// UpstreamErr writes a 502 response with an error code.
func UpstreamErr(c *gin.Context, code string) {
	c.JSON(http.StatusBadGateway, gin.H{"error": code})
}

// ServerErr writes a 500 response with an error code.
func ServerErr(c *gin.Context, code string) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": code})
}
