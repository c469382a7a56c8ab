package server

import (
	"net/http"

	"github.com/dietops/backend/internal/clients"
	"github.com/gin-gonic/gin"
)

type statsResponse struct {
	ShowStats   bool  `json:"show_stats"`
	Athletes    int64 `json:"athletes"`
	ActivePlans int64 `json:"active_plans"`
	Foods       int64 `json:"foods"`
}

// handleStats reports dashboard counts. Admins see platform totals, coaches see their
// own athletes and plans, athletes get no figures.
func (h *httpHandler) handleStats(c *gin.Context) {
	profile, _ := currentProfile(c)
	if !profile.CanEditPlans() {
		c.JSON(http.StatusOK, statsResponse{})
		return
	}

	ctx := c.Request.Context()
	scope := rosterScope(profile)
	athletes, err := h.clients.Count(ctx, clients.Filter{Type: clients.TypeAthlete, CoachID: scope})
	if err != nil {
		h.respondError(c, "failed to count athletes", err, nil)
		return
	}
	activePlans, err := h.plans.CountActive(ctx, scope)
	if err != nil {
		h.respondError(c, "failed to count plans", err, nil)
		return
	}
	catalog, err := h.foods.Count(ctx)
	if err != nil {
		h.respondError(c, "failed to count foods", err, nil)
		return
	}
	c.JSON(http.StatusOK, statsResponse{
		ShowStats:   true,
		Athletes:    athletes,
		ActivePlans: activePlans,
		Foods:       catalog,
	})
}
