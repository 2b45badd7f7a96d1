// Package resources serves the public catalogue of approved resources.
package resources

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/resources"
)

// Handlers serves the catalogue.
type Handlers struct {
	resources *resources.Service
}

// NewHandlers creates the catalogue handlers.
func NewHandlers(svc *resources.Service) *Handlers {
	return &Handlers{resources: svc}
}

// @Summary      List approved resources
// @Description  Approved resources, newest first, optionally restricted to one category tag
// @Tags         Resources
// @Produce      json
// @Param        category  query  string  false  "Category tag"
// @Success      200  {object}  map[string]interface{}  "Resources under data"
// @Failure      500  {object}  map[string]interface{}  "Store failure"
// @Router       /api/resources [get]
// ListHandler returns approved resources.
func (h *Handlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			rows []models.Resource
			err  error
		)
		if tag := strings.TrimSpace(c.Query("category")); tag != "" {
			rows, err = h.resources.ByCategory(c.Request.Context(), tag, true)
		} else {
			rows, err = h.resources.Active(c.Request.Context())
		}
		if err != nil {
			slog.Error("failed to list resources", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list resources",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": publicView(rows)})
	}
}

// publicView strips submitter addresses from rows shown to the public.
func publicView(rows []models.Resource) []models.Resource {
	out := make([]models.Resource, len(rows))
	for i, r := range rows {
		r.IPAddress = nil
		out[i] = r
	}
	return out
}
