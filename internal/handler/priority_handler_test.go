package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindpath/study-plan-api/internal/middleware"
	"github.com/mindpath/study-plan-api/internal/models"
	"github.com/mindpath/study-plan-api/internal/reference"
	"github.com/mindpath/study-plan-api/internal/service"
	"github.com/mindpath/study-plan-api/pkg/response"
)

func newPriorityTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	priority := service.NewPriorityService(reference.Default(), nil, nil)
	h := NewPriorityHandler(priority)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "learner-1"})
		c.Next()
	})
	r.POST("/study-plans/priority", h.Calculate)
	return r
}

func TestPriorityEndpointRanksSubjects(t *testing.T) {
	router := newPriorityTestRouter(t)

	body := map[string]interface{}{
		"subjects_progress": []map[string]interface{}{
			{"subject": "民法", "status": "in_progress", "progress": 80},
			{"subject": "刑法", "status": "not_started", "progress": 0},
		},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/study-plans/priority", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, err := json.Marshal(envelope.Data)
	require.NoError(t, err)

	var result struct {
		OrderedSubjects []string `json:"ordered_subjects"`
	}
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.OrderedSubjects, 2)
	assert.Equal(t, "民法", result.OrderedSubjects[0])
}

func TestPriorityEndpointRejectsEmptyBody(t *testing.T) {
	router := newPriorityTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/study-plans/priority", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
