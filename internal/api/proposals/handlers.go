// Package proposals implements the public submission endpoints: the quota
// probe and the proposal form target. The caller address is c.ClientIP(), so
// trusted proxies must be configured for it to be the real client.
package proposals

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resourcehub/resourcehub/internal/proposals"
)

// Handlers serves the proposal endpoints.
type Handlers struct {
	svc *proposals.Service
}

// NewHandlers creates the proposal handlers.
func NewHandlers(svc *proposals.Service) *Handlers {
	return &Handlers{svc: svc}
}

// @Summary      Check proposal limit
// @Description  Report how many pending proposals the caller address has and how many remain
// @Tags         Proposals
// @Produce      json
// @Success      200  {object}  proposals.Limit
// @Failure      500  {object}  map[string]interface{}  "Quota could not be checked"
// @Router       /api/check-proposal-limit [get]
// CheckLimitHandler reports the caller's quota.
func (h *Handlers) CheckLimitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		limit, err := h.svc.Limit(c.Request.Context(), ip)
		if err != nil {
			slog.Error("failed to check proposal limit", "ip", ip, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check proposal limit",
			})
			return
		}

		c.JSON(http.StatusOK, limit)
	}
}

// @Summary      Propose a resource
// @Description  Submit a learning resource for moderation. It stays pending until an admin approves it.
// @Tags         Proposals
// @Accept       json
// @Produce      json
// @Param        body  body  proposals.Proposal  true  "Resource proposal"
// @Success      201  {object}  map[string]interface{}  "Created resource under data"
// @Failure      400  {object}  map[string]interface{}  "Missing address or invalid fields"
// @Failure      429  {object}  map[string]interface{}  "Pending proposal limit reached"
// @Failure      500  {object}  map[string]interface{}  "Store failure"
// @Router       /api/propose-resource [post]
// ProposeHandler admits one proposal.
func (h *Handlers) ProposeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		var p proposals.Proposal
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		created, err := h.svc.Submit(c.Request.Context(), ip, p)
		if err != nil {
			var ve *proposals.ValidationError
			switch {
			case errors.Is(err, proposals.ErrMissingAddress):
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Could not determine the client address",
				})
			case errors.Is(err, proposals.ErrQuotaExceeded):
				ceiling := h.svc.Guard().MaxPending()
				c.JSON(http.StatusTooManyRequests, gin.H{
					"error": fmt.Sprintf("You have reached the limit of %d pending proposals. Please wait for them to be reviewed.", ceiling),
				})
			case errors.As(err, &ve):
				c.JSON(http.StatusBadRequest, gin.H{
					"error":    "Please fill in all required fields (including at least one category)",
					"problems": ve.Problems,
				})
			default:
				slog.Error("failed to create proposed resource", "ip", ip, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to create resource",
				})
			}
			return
		}

		slog.Info("resource proposed", "id", created.ID, "ip", ip)
		c.JSON(http.StatusCreated, gin.H{
			"data":    created,
			"success": true,
		})
	}
}
