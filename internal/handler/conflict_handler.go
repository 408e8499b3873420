package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindpath/study-plan-api/internal/dto"
	"github.com/mindpath/study-plan-api/internal/service"
	appErrors "github.com/mindpath/study-plan-api/pkg/errors"
	"github.com/mindpath/study-plan-api/pkg/response"
)

// ConflictHandler exposes conflict detection and auto-resolution.
type ConflictHandler struct {
	conflicts *service.ConflictService
	resolver  *service.ConflictResolver
}

// NewConflictHandler constructs the conflict handler.
func NewConflictHandler(conflicts *service.ConflictService, resolver *service.ConflictResolver) *ConflictHandler {
	return &ConflictHandler{conflicts: conflicts, resolver: resolver}
}

// Check runs conflict detection for the authenticated learner's draft.
func (h *ConflictHandler) Check(c *gin.Context) {
	if h.conflicts == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	learnerID := learnerIDFromContext(c)
	if learnerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid request body"))
		return
	}
	if len(req.Subjects) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "subjects_progress must not be empty"))
		return
	}

	result := h.conflicts.DetectConflicts(c.Request.Context(), learnerID, req.Draft())
	response.JSON(c, http.StatusOK, result, nil)
}

// Resolve runs detection followed by single-pass auto-resolution.
func (h *ConflictHandler) Resolve(c *gin.Context) {
	if h.conflicts == nil || h.resolver == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	learnerID := learnerIDFromContext(c)
	if learnerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid request body"))
		return
	}
	if len(req.Subjects) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "subjects_progress must not be empty"))
		return
	}

	draft := req.Draft()
	check := h.conflicts.DetectConflicts(c.Request.Context(), learnerID, draft)
	resp := dto.ResolveConflictsResponse{ConflictCheck: check}
	if check.HasConflicts {
		resp.Resolution = h.resolver.AutoResolve(draft, check.Conflicts)
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
