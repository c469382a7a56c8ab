package server

import (
	"fmt"
	"net/http"

	"github.com/dietops/backend/internal/clients"
	"github.com/dietops/backend/internal/users"
	"github.com/gin-gonic/gin"
)

type assignCoachRequest struct {
	CoachID string `json:"coach_id"`
}

type assignGymRequest struct {
	GymID string `json:"gym_id"`
}

// rosterScope limits roster reads and deletes to the caller's own clients unless they are an admin.
func rosterScope(profile users.Profile) string {
	if profile.SeesAllClients() {
		return ""
	}
	return profile.UserID
}

func (h *httpHandler) handleListClients(c *gin.Context) {
	profile, _ := currentProfile(c)
	results, err := h.clients.List(c.Request.Context(), clients.Filter{
		Type:    c.Query("type"),
		CoachID: rosterScope(profile),
	})
	if err != nil {
		h.respondError(c, "failed to list clients", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": results})
}

func (h *httpHandler) handleGetClient(c *gin.Context) {
	client, ok := h.visibleClient(c, c.Param("clientID"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *httpHandler) handleCreateClient(c *gin.Context) {
	var request clients.ClientInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	profile, _ := currentProfile(c)
	if !profile.SeesAllClients() {
		request.CoachID = profile.UserID
	}
	client, err := h.clients.Create(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, "failed to create client", err, nil)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *httpHandler) handleAssignCoach(c *gin.Context) {
	var request assignCoachRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	client, err := h.clients.AssignCoach(c.Request.Context(), c.Param("clientID"), request.CoachID)
	if err != nil {
		h.respondError(c, "failed to assign coach", err, nil)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *httpHandler) handleAssignGym(c *gin.Context) {
	var request assignGymRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	athlete, ok := h.visibleClient(c, c.Param("clientID"))
	if !ok {
		return
	}
	if request.GymID != "" {
		profile, _ := currentProfile(c)
		gym, err := h.clients.Get(c.Request.Context(), request.GymID)
		if err == nil && !canSeeClient(profile, gym) {
			err = clients.ErrClientNotFound
		}
		if err != nil {
			h.respondError(c, "failed to assign gym", fmt.Errorf("%w: unknown gym %q: %w", clients.ErrInvalidClient, request.GymID, err), nil)
			return
		}
	}
	client, err := h.clients.AssignGym(c.Request.Context(), athlete.ID, request.GymID)
	if err != nil {
		h.respondError(c, "failed to assign gym", err, nil)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *httpHandler) handleDeleteClients(c *gin.Context) {
	var request bulkDeleteRequest
	if err := c.ShouldBindJSON(&request); err != nil || len(request.IDs) == 0 {
		h.respondInvalidRequest(c, err)
		return
	}
	profile, _ := currentProfile(c)
	result := h.clients.DeleteMany(c.Request.Context(), rosterScope(profile), request.IDs)
	c.JSON(http.StatusOK, newBulkDeleteResponse(result))
}

// visibleClient loads a client and answers 404 when it belongs to another coach.
func (h *httpHandler) visibleClient(c *gin.Context, clientID string) (clients.Client, bool) {
	client, err := h.clients.Get(c.Request.Context(), clientID)
	if err != nil {
		h.respondError(c, "failed to load client", err, nil)
		return clients.Client{}, false
	}
	profile, _ := currentProfile(c)
	if !canSeeClient(profile, client) {
		h.respondError(c, "failed to load client", clients.ErrClientNotFound, nil)
		return clients.Client{}, false
	}
	return client, true
}

func canSeeClient(profile users.Profile, client clients.Client) bool {
	return profile.SeesAllClients() || client.CoachID == profile.UserID
}
