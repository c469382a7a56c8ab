package server

import (
	"net/http"

	"github.com/dietops/backend/internal/bulk"
	"github.com/dietops/backend/internal/macros"
	"github.com/dietops/backend/internal/plans"
	"github.com/gin-gonic/gin"
)

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type bulkDeleteResponse struct {
	bulk.Result
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
}

func newBulkDeleteResponse(result bulk.Result) bulkDeleteResponse {
	return bulkDeleteResponse{
		Result:       result,
		SuccessCount: result.SuccessCount(),
		FailureCount: result.FailureCount(),
	}
}

type planResponse struct {
	plans.Plan
	Totals macros.Totals `json:"totals"`
}

func (h *httpHandler) handleListPlans(c *gin.Context) {
	items, err := h.plans.ListPlans(c.Request.Context(), ownerID(c))
	if err != nil {
		h.respondError(c, "failed to list plans", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": items})
}

func (h *httpHandler) handleGetPlan(c *gin.Context) {
	plan, err := h.plans.LoadPlan(c.Request.Context(), ownerID(c), c.Param("planID"))
	if err != nil {
		h.respondError(c, "failed to load plan", err, nil)
		return
	}
	c.JSON(http.StatusOK, planResponse{Plan: plan, Totals: macros.ForPlan(plan.Days)})
}

func (h *httpHandler) handleCreatePlan(c *gin.Context) {
	var request plans.PlanInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	plan, err := h.plans.CreatePlan(c.Request.Context(), ownerID(c), request)
	if err != nil {
		h.respondError(c, "failed to create plan", err, nil)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *httpHandler) handleUpdatePlan(c *gin.Context) {
	var request plans.PlanUpdate
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	plan, err := h.plans.UpdatePlan(c.Request.Context(), ownerID(c), c.Param("planID"), request)
	if err != nil {
		h.respondError(c, "failed to update plan", err, nil)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *httpHandler) handleDeletePlans(c *gin.Context) {
	var request bulkDeleteRequest
	if err := c.ShouldBindJSON(&request); err != nil || len(request.IDs) == 0 {
		h.respondInvalidRequest(c, err)
		return
	}
	owner := ownerID(c)
	result := h.plans.DeletePlans(c.Request.Context(), owner, request.IDs)
	for _, planID := range result.Succeeded {
		h.drafts.Close(owner, planID)
	}
	c.JSON(http.StatusOK, newBulkDeleteResponse(result))
}
