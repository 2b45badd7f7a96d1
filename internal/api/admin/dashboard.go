// dashboard.go implements the admin page-load endpoint and the moderation
// statistics shown on it.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/middleware"
	"github.com/resourcehub/resourcehub/internal/resources"
	"github.com/resourcehub/resourcehub/internal/store"
)

// DashboardHandler serves the admin dashboard data.
type DashboardHandler struct {
	resources *resources.Service
}

// NewDashboardHandler creates the dashboard handler.
func NewDashboardHandler(svc *resources.Service) *DashboardHandler {
	return &DashboardHandler{resources: svc}
}

// DashboardStats counts resources by moderation state.
type DashboardStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Pending int `json:"pending"`
}

// DashboardResponse is the page-load payload of the admin dashboard.
type DashboardResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          string            `json:"user"`
	Stats         DashboardStats    `json:"stats"`
	Pending       []models.Resource `json:"pending"`
}

// @Summary      Admin dashboard
// @Description  Page-load data for the moderation dashboard. Without a session the guard redirects to /admin-login.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  DashboardResponse
// @Failure      303  {string}  string  "Redirect to /admin-login?redirect=..."
// @Failure      500  {object}  map[string]interface{}  "Store failure"
// @Router       /admin-dashboard [get]
// PageHandler returns the dashboard page-load data.
func (h *DashboardHandler) PageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var (
			stats   DashboardStats
			pending []models.Resource
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			stats.Total, err = h.resources.Count(gctx, nil)
			return err
		})
		g.Go(func() (err error) {
			stats.Active, err = h.resources.Count(gctx, store.Where(store.Eq(models.ColIsActive, true)))
			return err
		})
		g.Go(func() (err error) {
			pending, err = h.resources.Pending(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			slog.Error("failed to load admin dashboard", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load dashboard",
			})
			return
		}
		stats.Pending = len(pending)

		c.JSON(http.StatusOK, DashboardResponse{
			Authenticated: true,
			User:          c.GetString(middleware.AdminUserKey),
			Stats:         stats,
			Pending:       pending,
		})
	}
}
