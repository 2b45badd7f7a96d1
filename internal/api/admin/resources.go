// resources.go implements the moderation API under /api/admin/resources.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/middleware"
	"github.com/resourcehub/resourcehub/internal/proposals"
	"github.com/resourcehub/resourcehub/internal/resources"
	"github.com/resourcehub/resourcehub/internal/store"
)

// ResourceHandlers handles moderation requests.
type ResourceHandlers struct {
	resources *resources.Service
}

// NewResourceHandlers creates the moderation handlers.
func NewResourceHandlers(svc *resources.Service) *ResourceHandlers {
	return &ResourceHandlers{resources: svc}
}

// UpdateResourceRequest is a partial update; absent fields are left alone.
type UpdateResourceRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	URL         *string   `json:"url"`
	Category    *[]string `json:"category"`
	IsActive    *bool     `json:"isActive"`
}

func (r UpdateResourceRequest) changes() store.Changes {
	var c store.Changes
	if r.Name != nil {
		c = c.Set(models.ColName, *r.Name)
	}
	if r.Description != nil {
		c = c.Set(models.ColDescription, *r.Description)
	}
	if r.URL != nil {
		c = c.Set(models.ColURL, *r.URL)
	}
	if r.Category != nil {
		c = c.Set(models.ColCategory, proposals.NormalizeTags(*r.Category))
	}
	if r.IsActive != nil {
		c = c.Set(models.ColIsActive, *r.IsActive)
	}
	return c
}

// @Summary      List resources
// @Description  All resources for moderation, newest first. status filters by moderation state.
// @Tags         Admin
// @Produce      json
// @Param        status    query  string  false  "pending, active or all (default all)"
// @Param        category  query  string  false  "Category tag"
// @Param        limit     query  int     false  "Page size"
// @Param        offset    query  int     false  "Rows to skip"
// @Success      200  {object}  map[string]interface{}  "Resources under data"
// @Failure      400  {object}  map[string]interface{}  "Bad query"
// @Failure      500  {object}  map[string]interface{}  "Store failure"
// @Router       /api/admin/resources [get]
// ListHandler lists resources with optional filters.
func (h *ResourceHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var f store.Filters
		switch c.DefaultQuery("status", "all") {
		case "pending":
			f = f.And(store.Eq(models.ColIsActive, false))
		case "active":
			f = f.And(store.Eq(models.ColIsActive, true))
		case "all":
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be pending, active or all"})
			return
		}
		if tag := c.Query("category"); tag != "" {
			f = f.And(store.Contains(models.ColCategory, tag))
		}

		opts := store.QueryOptions{OrderBy: models.ColCreatedAt, Descending: true}
		var err error
		if opts.Limit, err = queryInt(c, "limit"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		if opts.Offset, err = queryInt(c, "offset"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return
		}

		rows, err := h.resources.GetWhere(c.Request.Context(), f, opts)
		if err != nil {
			slog.Error("failed to list resources", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list resources"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

// PendingHandler lists resources awaiting moderation.
// GET /api/admin/resources/pending
func (h *ResourceHandlers) PendingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := h.resources.Pending(c.Request.Context())
		if err != nil {
			slog.Error("failed to list pending resources", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list resources"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

// ApproveHandler makes a resource public.
// POST /api/admin/resources/:id/approve
func (h *ResourceHandlers) ApproveHandler() gin.HandlerFunc {
	return h.moderate("approve", h.resources.Approve)
}

// RejectHandler moves a resource back to pending.
// POST /api/admin/resources/:id/reject
func (h *ResourceHandlers) RejectHandler() gin.HandlerFunc {
	return h.moderate("reject", h.resources.Reject)
}

func (h *ResourceHandlers) moderate(action string, apply func(context.Context, string) (models.Resource, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resourceID(c)
		if !ok {
			return
		}
		row, err := apply(c.Request.Context(), id)
		if err != nil {
			h.writeError(c, action, id, err)
			return
		}
		slog.Info("resource moderated", "action", action, "id", id, "admin", c.GetString(middleware.AdminUserKey))
		c.JSON(http.StatusOK, gin.H{"data": row})
	}
}

// UpdateHandler applies a partial update to a resource.
// PUT /api/admin/resources/:id
func (h *ResourceHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resourceID(c)
		if !ok {
			return
		}
		var req UpdateResourceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		changes := req.changes()
		if len(changes) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
			return
		}

		row, err := h.resources.Update(c.Request.Context(), id, changes)
		if err != nil {
			h.writeError(c, "update", id, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": row})
	}
}

// DeleteHandler removes a resource.
// DELETE /api/admin/resources/:id
func (h *ResourceHandlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resourceID(c)
		if !ok {
			return
		}
		row, err := h.resources.Delete(c.Request.Context(), id)
		if err != nil {
			h.writeError(c, "delete", id, err)
			return
		}
		slog.Info("resource deleted", "id", id, "url", row.URL, "admin", c.GetString(middleware.AdminUserKey))
		c.JSON(http.StatusOK, gin.H{"data": row})
	}
}

func (h *ResourceHandlers) writeError(c *gin.Context, action, id string, err error) {
	switch {
	case store.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	case errors.Is(err, store.ErrUnknownField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("resource "+action+" failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action + " resource"})
	}
}

// resourceID reads and checks the :id path parameter, answering 400 itself
// when it is not a UUID.
func resourceID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid resource id"})
		return "", false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}
