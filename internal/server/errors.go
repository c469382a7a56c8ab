package server

import (
	"errors"
	"net/http"

	"github.com/dietops/backend/internal/clients"
	"github.com/dietops/backend/internal/draft"
	"github.com/dietops/backend/internal/export"
	"github.com/dietops/backend/internal/foods"
	"github.com/dietops/backend/internal/knowledge"
	"github.com/dietops/backend/internal/plans"
	"github.com/dietops/backend/internal/serviceerror"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	codeInvalidRequest     = "invalid_request"
	codeNotFound           = "not_found"
	codeInvalidPermutation = "invalid_permutation"
	codeFlushInProgress    = "flush_in_progress"
	codeInternal           = "internal_error"
)

type errorMapping struct {
	status int
	code   string
}

func classifyError(err error) errorMapping {
	switch {
	case errors.Is(err, plans.ErrPlanNotFound),
		errors.Is(err, foods.ErrFoodNotFound),
		errors.Is(err, clients.ErrClientNotFound),
		errors.Is(err, draft.ErrSessionNotFound):
		return errorMapping{status: http.StatusNotFound, code: codeNotFound}
	case errors.Is(err, draft.ErrInvalidPermutation):
		return errorMapping{status: http.StatusConflict, code: codeInvalidPermutation}
	case errors.Is(err, draft.ErrFlushInProgress):
		return errorMapping{status: http.StatusConflict, code: codeFlushInProgress}
	case errors.Is(err, plans.ErrInvalidPlan),
		errors.Is(err, plans.ErrInvalidTrainingSlot),
		errors.Is(err, plans.ErrInvalidDayOfWeek),
		errors.Is(err, foods.ErrInvalidFood),
		errors.Is(err, clients.ErrInvalidClient),
		errors.Is(err, knowledge.ErrInvalidPrinciple),
		errors.Is(err, draft.ErrInvalidQuantity),
		errors.Is(err, draft.ErrInvalidTarget),
		errors.Is(err, export.ErrUnsupportedFormat):
		return errorMapping{status: http.StatusBadRequest, code: codeInvalidRequest}
	}
	if code, ok := serviceerror.CodeOf(err); ok {
		return errorMapping{status: http.StatusInternalServerError, code: code}
	}
	return errorMapping{status: http.StatusInternalServerError, code: codeInternal}
}

// respondError writes the error payload, logging client faults as warnings and server faults as errors.
func (h *httpHandler) respondError(c *gin.Context, message string, err error, extra gin.H) {
	mapping := classifyError(err)
	body := gin.H{"code": mapping.code}
	for key, value := range extra {
		body[key] = value
	}
	if mapping.status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.String("code", mapping.code), zap.String("path", c.FullPath()), zap.Error(err))
		body["error"] = "internal server error"
	} else {
		h.logger.Warn(message, zap.String("code", mapping.code), zap.String("path", c.FullPath()), zap.Error(err))
		body["error"] = err.Error()
	}
	c.AbortWithStatusJSON(mapping.status, body)
}

func (h *httpHandler) respondInvalidRequest(c *gin.Context, err error) {
	if err != nil {
		h.logger.Warn("invalid request payload", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request", "code": codeInvalidRequest})
}
