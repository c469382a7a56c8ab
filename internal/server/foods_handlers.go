package server

import (
	"net/http"
	"strconv"

	"github.com/dietops/backend/internal/foods"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleSearchFoods(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.respondInvalidRequest(c, err)
			return
		}
		limit = parsed
	}
	results, err := h.foods.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.respondError(c, "failed to search foods", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"foods": results})
}

func (h *httpHandler) handleCreateFood(c *gin.Context) {
	var request foods.FoodInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	food, err := h.foods.Create(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, "failed to create food", err, nil)
		return
	}
	c.JSON(http.StatusCreated, food)
}

func (h *httpHandler) handleUpdateFood(c *gin.Context) {
	var request foods.FoodUpdate
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	food, err := h.foods.Update(c.Request.Context(), c.Param("foodID"), request)
	if err != nil {
		h.respondError(c, "failed to update food", err, nil)
		return
	}
	c.JSON(http.StatusOK, food)
}

func (h *httpHandler) handleDeleteFoods(c *gin.Context) {
	var request bulkDeleteRequest
	if err := c.ShouldBindJSON(&request); err != nil || len(request.IDs) == 0 {
		h.respondInvalidRequest(c, err)
		return
	}
	result := h.foods.DeleteMany(c.Request.Context(), request.IDs)
	c.JSON(http.StatusOK, newBulkDeleteResponse(result))
}
