package server

import (
	"net/http"

	"github.com/dietops/backend/internal/knowledge"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListKnowledge(c *gin.Context) {
	principles, err := h.knowledge.List(c.Request.Context(), knowledge.Filter{
		Objective: c.Query("objective"),
		Category:  c.Query("category"),
	})
	if err != nil {
		h.respondError(c, "failed to list principles", err, nil)
		return
	}
	rendered := make([]knowledge.RenderedPrinciple, 0, len(principles))
	for _, principle := range principles {
		item, err := knowledge.Render(principle)
		if err != nil {
			h.respondError(c, "failed to render principle", err, nil)
			return
		}
		rendered = append(rendered, item)
	}
	c.JSON(http.StatusOK, gin.H{"groups": knowledge.GroupByObjective(rendered)})
}

func (h *httpHandler) handleAddKnowledge(c *gin.Context) {
	var request knowledge.PrincipleInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	principle, err := h.knowledge.Add(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, "failed to add principle", err, nil)
		return
	}
	rendered, err := knowledge.Render(principle)
	if err != nil {
		h.respondError(c, "failed to render principle", err, nil)
		return
	}
	c.JSON(http.StatusCreated, rendered)
}
