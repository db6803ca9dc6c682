package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/cleberrangel/epic-forecast-api/internal/service"
)

// HoursHandler handles hour observation ingestion and reads
type HoursHandler struct {
	hoursService *service.HoursService
}

// NewHoursHandler creates a new hours handler
func NewHoursHandler(hoursService *service.HoursService) *HoursHandler {
	return &HoursHandler{hoursService: hoursService}
}

// Upsert handles POST /api/v1/hours - record one hour observation
// @Summary      Upsert hour observation
// @Description  Records hours for a (project, epic, team, month) cell, replacing any previous value
// @Tags         hours
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body model.HoursUpsertRequest true "Hour observation"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Failure      401 {object} model.ErrorResponse
// @Router       /api/v1/hours [post]
func (h *HoursHandler) Upsert(c *gin.Context) {
	log := logger.FromGin(c)

	var req model.HoursUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	record, err := h.hoursService.Upsert(c.Request.Context(), req)
	if err != nil {
		log.Warn().Err(err).Str("epic_key", req.EpicKey).Msg("Hour upsert rejected")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{Success: true, Data: record})
}

// ListByProject handles GET /api/v1/projects/:project/hours
// @Summary      List project hours
// @Description  Returns every hour observation recorded for a project
// @Tags         hours
// @Produce      json
// @Security     BearerAuth
// @Param        project path string true "Project key"
// @Success      200 {object} model.Response
// @Failure      401 {object} model.ErrorResponse
// @Router       /api/v1/projects/{project}/hours [get]
func (h *HoursHandler) ListByProject(c *gin.Context) {
	records, err := h.hoursService.ListByProject(c.Param("project"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    records,
		Meta:    &model.Meta{Total: len(records)},
	})
}
