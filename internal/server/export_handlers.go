package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dietops/backend/internal/draft"
	"github.com/dietops/backend/internal/export"
	"github.com/gin-gonic/gin"
)

// handleExport renders the open draft when there is one, otherwise the stored plan.
func (h *httpHandler) handleExport(c *gin.Context) {
	owner := ownerID(c)
	planID := c.Param("planID")

	var snapshot export.Snapshot
	session, err := h.drafts.Get(owner, planID)
	switch {
	case err == nil:
		state := session.Snapshot()
		snapshot = export.NewSnapshot(state.PlanName, state.Days)
	case errors.Is(err, draft.ErrSessionNotFound):
		plan, loadErr := h.plans.LoadPlan(c.Request.Context(), owner, planID)
		if loadErr != nil {
			h.respondError(c, "failed to load plan for export", loadErr, nil)
			return
		}
		snapshot = export.NewSnapshot(plan.Name, plan.Days)
	default:
		h.respondError(c, "failed to load draft for export", err, nil)
		return
	}

	artifact, err := h.exports.Export(c.Request.Context(), owner, planID, snapshot, c.Query("format"))
	if err != nil {
		h.respondError(c, "failed to export plan", err, nil)
		return
	}
	if artifact.Uploaded() {
		c.JSON(http.StatusOK, artifact)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}
