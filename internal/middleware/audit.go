// audit.go records admin actions (login, logout, moderation) to the audit
// shippers once the handler has run.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resourcehub/resourcehub/internal/audit"
	"github.com/resourcehub/resourcehub/internal/safego"
)

const auditShipTimeout = 5 * time.Second

// auditActions names the audited routes by method and route template.
var auditActions = map[string]string{
	http.MethodPost + " /api/admin-login":                 "admin.login",
	http.MethodPost + " /api/admin-logout":                "admin.logout",
	http.MethodPost + " /api/admin/resources/:id/approve": "resource.approved",
	http.MethodPost + " /api/admin/resources/:id/reject":  "resource.rejected",
	http.MethodPut + " /api/admin/resources/:id":          "resource.updated",
	http.MethodDelete + " /api/admin/resources/:id":       "resource.deleted",
}

// AuditAction returns the audit action for a request, or "" when the route
// is not audited.
func AuditAction(method, route string) string {
	return auditActions[method+" "+route]
}

// AuditMiddleware ships an entry for every audited route. Failed requests
// (status >= 400) are only recorded when logFailed is set. Shipping happens
// off the request path.
func AuditMiddleware(shipper audit.Shipper, logFailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action := AuditAction(c.Request.Method, c.FullPath())
		if action == "" {
			return
		}
		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			if !logFailed {
				return
			}
			action += "_failed"
		}

		entry := &audit.LogEntry{
			Timestamp:  time.Now().UTC(),
			Action:     action,
			Actor:      c.GetString(AdminUserKey),
			ResourceID: c.Param("id"),
			IPAddress:  c.ClientIP(),
			RequestID:  c.GetString(RequestIDKey),
			StatusCode: status,
		}

		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditShipTimeout)
			defer cancel()
			if err := shipper.Ship(ctx, entry); err != nil {
				slog.Error("failed to ship audit entry", "action", entry.Action, "error", err)
			}
		})
	}
}
