package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/dietops/backend/internal/auth"
	"github.com/dietops/backend/internal/clients"
	"github.com/dietops/backend/internal/draft"
	"github.com/dietops/backend/internal/export"
	"github.com/dietops/backend/internal/foods"
	"github.com/dietops/backend/internal/knowledge"
	"github.com/dietops/backend/internal/plans"
	"github.com/dietops/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	profileContextKey        = "dietops_profile"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingProfileResolver  = errors.New("profile resolver dependency required")
	errMissingPlansService     = errors.New("plans service dependency required")
	errMissingFoodsService     = errors.New("foods service dependency required")
	errMissingClientsService   = errors.New("clients service dependency required")
	errMissingKnowledgeService = errors.New("knowledge service dependency required")
	errMissingDraftRegistry    = errors.New("draft registry dependency required")
	errMissingExportService    = errors.New("export service dependency required")
)

// SessionValidator authenticates requests.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	ValidateToken(token string) (auth.SessionClaims, error)
}

// ProfileResolver maps session claims to a canonical profile.
type ProfileResolver interface {
	ResolveProfile(claims auth.SessionClaims) (users.Profile, error)
}

// Dependencies wires every collaborator of the HTTP handler.
type Dependencies struct {
	Sessions          SessionValidator
	Profiles          ProfileResolver
	Plans             *plans.Service
	Foods             *foods.Service
	Clients           *clients.Service
	Knowledge         *knowledge.Service
	Drafts            *draft.Registry
	Exports           *export.Service
	Realtime          *RealtimeDispatcher
	Logger            *zap.Logger
	AllowedOrigins    []string
	RateLimitRPS      int
	RateLimitBurst    int
	HeartbeatInterval time.Duration
	Clock             func() time.Time
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Profiles == nil {
		return nil, errMissingProfileResolver
	}
	if deps.Plans == nil {
		return nil, errMissingPlansService
	}
	if deps.Foods == nil {
		return nil, errMissingFoodsService
	}
	if deps.Clients == nil {
		return nil, errMissingClientsService
	}
	if deps.Knowledge == nil {
		return nil, errMissingKnowledgeService
	}
	if deps.Drafts == nil {
		return nil, errMissingDraftRegistry
	}
	if deps.Exports == nil {
		return nil, errMissingExportService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))
	if limiter := newRateLimitMiddleware(deps.RateLimitRPS, deps.RateLimitBurst); limiter != nil {
		router.Use(limiter)
	}

	handler := &httpHandler{
		sessions:  deps.Sessions,
		profiles:  deps.Profiles,
		plans:     deps.Plans,
		foods:     deps.Foods,
		clients:   deps.Clients,
		knowledge: deps.Knowledge,
		drafts:    deps.Drafts,
		exports:   deps.Exports,
		realtime:  realtime,
		logger:    logger,
		heartbeat: heartbeat,
		now:       clock,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/plans", handler.handleListPlans)
	protected.GET("/plans/:planID", handler.handleGetPlan)
	protected.GET("/plans/:planID/draft", handler.handleGetDraft)
	protected.GET("/plans/:planID/export", handler.handleExport)
	protected.GET("/foods", handler.handleSearchFoods)
	protected.GET("/knowledge", handler.handleListKnowledge)
	protected.GET("/events", handler.handleEvents)
	protected.GET("/stats", handler.handleStats)

	editors := protected.Group("/")
	editors.Use(requireRole(users.Profile.CanEditPlans))
	editors.POST("/plans", handler.handleCreatePlan)
	editors.PATCH("/plans/:planID", handler.handleUpdatePlan)
	editors.DELETE("/plans", handler.handleDeletePlans)
	editors.POST("/plans/:planID/draft", handler.handleOpenDraft)
	editors.POST("/plans/:planID/draft/operations", handler.handleDraftOperation)
	editors.POST("/plans/:planID/draft/flush", handler.handleFlushDraft)
	editors.DELETE("/plans/:planID/draft", handler.handleCloseDraft)
	editors.GET("/clients", handler.handleListClients)
	editors.GET("/clients/:clientID", handler.handleGetClient)
	editors.POST("/clients", handler.handleCreateClient)
	editors.PUT("/clients/:clientID/gym", handler.handleAssignGym)
	editors.DELETE("/clients", handler.handleDeleteClients)

	admins := protected.Group("/")
	admins.Use(requireRole(users.Profile.CanAssignCoaches))
	admins.PUT("/clients/:clientID/coach", handler.handleAssignCoach)

	catalog := protected.Group("/")
	catalog.Use(requireRole(users.Profile.CanManageCatalog))
	catalog.POST("/foods", handler.handleCreateFood)
	catalog.PUT("/foods/:foodID", handler.handleUpdateFood)
	catalog.DELETE("/foods", handler.handleDeleteFoods)
	catalog.POST("/knowledge", handler.handleAddKnowledge)

	return router, nil
}

type httpHandler struct {
	sessions  SessionValidator
	profiles  ProfileResolver
	plans     *plans.Service
	foods     *foods.Service
	clients   *clients.Service
	knowledge *knowledge.Service
	drafts    *draft.Registry
	exports   *export.Service
	realtime  *RealtimeDispatcher
	logger    *zap.Logger
	heartbeat time.Duration
	now       func() time.Time
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
	}
	if allowAll {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = origins
	config.AllowCredentials = true
	return config
}

// authorizeRequest validates the session token and stores the resolved profile.
// EventSource clients cannot set headers, so the stream also accepts an access_token query.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if errors.Is(err, auth.ErrMissingSessionToken) {
		if token := c.Query("access_token"); token != "" {
			claims, err = h.sessions.ValidateToken(token)
		}
	}
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
		return
	}

	profile, err := h.profiles.ResolveProfile(claims)
	if err != nil {
		if errors.Is(err, users.ErrInvalidIdentity) {
			h.logger.Warn("profile resolution rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
			return
		}
		h.logger.Error("profile resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": "profile_resolution_failed"})
		return
	}
	c.Set(profileContextKey, profile)
	c.Next()
}

func requireRole(allowed func(users.Profile) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, ok := currentProfile(c)
		if !ok || !allowed(profile) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "forbidden"})
			return
		}
		c.Next()
	}
}

func currentProfile(c *gin.Context) (users.Profile, bool) {
	value, ok := c.Get(profileContextKey)
	if !ok {
		return users.Profile{}, false
	}
	profile, ok := value.(users.Profile)
	if !ok || profile.UserID == "" {
		return users.Profile{}, false
	}
	return profile, true
}

func ownerID(c *gin.Context) string {
	profile, _ := currentProfile(c)
	return profile.UserID
}
