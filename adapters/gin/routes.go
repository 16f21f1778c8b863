// Package proxygin exposes the connector operations over HTTP for a local
// host process. Each route maps one host-invoked operation.
package proxygin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-iga/proxykit/adapters/ginutil"
	"github.com/open-iga/proxykit/connector"
	"github.com/open-iga/proxykit/core"
)

// Register mounts the operation routes on r. rl may be nil to disable rate
// limiting.
func Register(r gin.IRouter, conn *connector.Connector, rl ginutil.RateLimiter) {
	ops := r.Group("/ops")
	ops.POST("/test-connection", HandleTestConnectionPOST(conn, rl))
	ops.POST("/entitlements/list", HandleListEntitlementsPOST(conn, rl))
	ops.POST("/accounts/list", HandleListAccountsPOST(conn, rl))
	ops.POST("/accounts/create", HandleCreateAccountPOST(conn, rl))
	ops.POST("/accounts/update", HandleUpdateAccountPOST(conn, rl))
}

func HandleTestConnectionPOST(conn *connector.Connector, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLOpTestConnection) {
			ginutil.TooMany(c)
			return
		}
		if err := conn.TestConnection(c.Request.Context()); err != nil {
			writeOpError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func HandleListEntitlementsPOST(conn *connector.Connector, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLOpListEntitlements) {
			ginutil.TooMany(c)
			return
		}
		records, err := conn.ListEntitlements(c.Request.Context())
		if err != nil {
			writeOpError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entitlements": records})
	}
}

func HandleListAccountsPOST(conn *connector.Connector, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLOpListAccounts) {
			ginutil.TooMany(c)
			return
		}
		records, err := conn.ListAccounts(c.Request.Context())
		if err != nil {
			writeOpError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": records})
	}
}

func HandleCreateAccountPOST(conn *connector.Connector, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLOpCreateAccount) {
			ginutil.TooMany(c)
			return
		}
		var in connector.CreateAccountInput
		if err := c.ShouldBindJSON(&in); err != nil {
			ginutil.BadRequest(c, "invalid_payload")
			return
		}
		record, err := conn.CreateAccount(c.Request.Context(), in)
		if err != nil {
			writeOpError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"account": record})
	}
}

func HandleUpdateAccountPOST(conn *connector.Connector, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLOpUpdateAccount) {
			ginutil.TooMany(c)
			return
		}
		var in connector.UpdateAccountInput
		if err := c.ShouldBindJSON(&in); err != nil {
			ginutil.BadRequest(c, "invalid_payload")
			return
		}
		record, err := conn.UpdateAccount(c.Request.Context(), in)
		if err != nil {
			writeOpError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"account": record})
	}
}

// writeOpError maps the core error taxonomy onto HTTP statuses.
func writeOpError(c *gin.Context, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		ginutil.BadRequest(c, ve.Msg)
	case core.IsNotFound(err):
		ginutil.NotFound(c, err.Error())
	case core.IsRemote(err):
		ginutil.UpstreamErr(c, err.Error())
	default:
		ginutil.ServerErr(c, err.Error())
	}
}
