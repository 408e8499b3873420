package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mindpath/study-plan-api/internal/dto"
	"github.com/mindpath/study-plan-api/internal/models"
	"github.com/mindpath/study-plan-api/internal/reference"
	"github.com/mindpath/study-plan-api/internal/service"
	appErrors "github.com/mindpath/study-plan-api/pkg/errors"
	"github.com/mindpath/study-plan-api/pkg/export"
	"github.com/mindpath/study-plan-api/pkg/response"
)

// PlanHandler exposes plan generation, retrieval and export endpoints.
type PlanHandler struct {
	plans   *service.PlanService
	catalog *reference.Catalog
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
}

// NewPlanHandler constructs the plan handler.
func NewPlanHandler(plans *service.PlanService, catalog *reference.Catalog, csv *export.CSVExporter, pdf *export.PDFExporter) *PlanHandler {
	return &PlanHandler{plans: plans, catalog: catalog, csv: csv, pdf: pdf}
}

// Generate runs the full plan-generation pipeline.
func (h *PlanHandler) Generate(c *gin.Context) {
	if h.plans == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	learnerID := learnerIDFromContext(c)
	if learnerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.GeneratePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid request body"))
		return
	}

	start := time.Now()
	result, err := h.plans.GeneratePlan(c.Request.Context(), learnerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if result.Status == models.PlanStatusPending {
		status = http.StatusAccepted
	}
	response.JSON(c, status, result, nil, map[string]interface{}{
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

// List returns the authenticated learner's stored plans.
func (h *PlanHandler) List(c *gin.Context) {
	if h.plans == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	learnerID := learnerIDFromContext(c)
	if learnerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query dto.PlanListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid query parameters"))
		return
	}

	plans, pagination, err := h.plans.ListPlans(c.Request.Context(), learnerID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get returns one stored plan with its decoded content.
func (h *PlanHandler) Get(c *gin.Context) {
	if h.plans == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	learnerID := learnerIDFromContext(c)
	if learnerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	record, err := h.plans.GetPlan(c.Request.Context(), learnerID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	content, err := service.DecodePlanContent(record)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode plan content"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"plan": record, "content": content}, nil)
}

// Export renders a stored plan as CSV or PDF.
func (h *PlanHandler) Export(c *gin.Context) {
	if h.plans == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	learnerID := learnerIDFromContext(c)
	if learnerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "pdf" {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "format must be csv or pdf"))
		return
	}

	record, err := h.plans.GetPlan(c.Request.Context(), learnerID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	// The core PDF fonts cannot render CJK glyphs, so the PDF variant
	// falls back to the catalog's ASCII subject codes.
	dataset := h.planDataset(record, format == "pdf")
	filename := fmt.Sprintf("study-plan-%s.%s", record.ID, format)

	switch format {
	case "csv":
		if h.csv == nil {
			response.Error(c, appErrors.ErrInternal)
			return
		}
		payload, err := h.csv.Render(dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv export"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, "text/csv", payload)
	case "pdf":
		if h.pdf == nil {
			response.Error(c, appErrors.ErrInternal)
			return
		}
		payload, err := h.pdf.Render(dataset, "Study Plan Summary")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render pdf export"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, "application/pdf", payload)
	}
}

func (h *PlanHandler) planDataset(record *models.StudyPlan, asciiSubjects bool) export.Dataset {
	subjects := service.SubjectNamesFromRecord(record)
	if asciiSubjects && h.catalog != nil {
		codes := make([]string, 0, len(subjects))
		for _, subject := range subjects {
			codes = append(codes, h.catalog.CodeOf(subject))
		}
		subjects = codes
	}

	return export.Dataset{
		Headers: []string{"field", "value"},
		Rows: []map[string]string{
			{"field": "plan_id", "value": record.ID},
			{"field": "status", "value": string(record.Status)},
			{"field": "subjects", "value": strings.Join(subjects, " / ")},
			{"field": "daily_hours", "value": fmt.Sprintf("%.1f", record.DailyHours)},
			{"field": "weekly_days", "value": fmt.Sprintf("%d", record.WeeklyDays)},
			{"field": "start_date", "value": record.StartDate.Format("2006-01-02")},
			{"field": "exam_date", "value": record.ExamDate.Format("2006-01-02")},
			{"field": "created_at", "value": record.CreatedAt.Format(time.RFC3339)},
		},
	}
}
