package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qrengage/docpipe/internal/pkg/errcode"
	"github.com/qrengage/docpipe/internal/pkg/response"
)

const (
	ContextTenantIDKey = "tenant_id"
	tenantHeader       = "X-Tenant-Id"
)

// TenantAuth resolves the caller's tenant from the X-Tenant-Id header.
// Gateways upstream are responsible for authenticating the value; this
// service only requires that it is present and well-formed.
func TenantAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(tenantHeader))
		if tenantID == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing tenant id")
			c.Abort()
			return
		}
		if len(tenantID) > 128 {
			response.Error(c, errcode.ErrUnauthorized, "invalid tenant id")
			c.Abort()
			return
		}
		c.Set(ContextTenantIDKey, tenantID)
		c.Next()
	}
}

// TenantID reads the tenant set by TenantAuth from the request context.
func TenantID(c *gin.Context) string {
	if v, ok := c.Get(ContextTenantIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
