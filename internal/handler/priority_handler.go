package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindpath/study-plan-api/internal/dto"
	"github.com/mindpath/study-plan-api/internal/service"
	appErrors "github.com/mindpath/study-plan-api/pkg/errors"
	"github.com/mindpath/study-plan-api/pkg/response"
)

// PriorityHandler exposes the subject ranking endpoint.
type PriorityHandler struct {
	priority *service.PriorityService
}

// NewPriorityHandler constructs the priority handler.
func NewPriorityHandler(priority *service.PriorityService) *PriorityHandler {
	return &PriorityHandler{priority: priority}
}

// Calculate ranks the submitted subjects under a preference profile.
func (h *PriorityHandler) Calculate(c *gin.Context) {
	if h.priority == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	var req dto.PriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid request body"))
		return
	}

	result, err := h.priority.CalculateSubjectPriority(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
