package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/cleberrangel/epic-forecast-api/internal/repository"
)

// ProjectConfigHandler manages per-project forecasting bounds
type ProjectConfigHandler struct {
	projectRepo *repository.ProjectConfigRepository
}

// NewProjectConfigHandler creates a new project config handler
func NewProjectConfigHandler(projectRepo *repository.ProjectConfigRepository) *ProjectConfigHandler {
	return &ProjectConfigHandler{projectRepo: projectRepo}
}

// Upsert handles PUT /api/v1/projects/:project/config
// @Summary      Upsert project config
// @Description  Sets a project's forecasting window and inclusion flag
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        project path string true "Project key"
// @Param        request body model.ProjectConfigRequest true "Forecasting config"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Router       /api/v1/projects/{project}/config [put]
func (h *ProjectConfigHandler) Upsert(c *gin.Context) {
	log := logger.FromGin(c)

	var req model.ProjectConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	start, err := time.Parse("2006-01-02", req.ForecastingStartDate)
	if err != nil {
		respondBadRequest(c, fmt.Errorf("forecasting_start_date: %w", err))
		return
	}
	end, err := time.Parse("2006-01-02", req.ForecastingEndDate)
	if err != nil {
		respondBadRequest(c, fmt.Errorf("forecasting_end_date: %w", err))
		return
	}

	cfg := model.ProjectForecastingConfig{
		ProjectKey:           c.Param("project"),
		ForecastingStartDate: start,
		ForecastingEndDate:   end,
		IncludeInForecasting: req.IncludeInForecasting,
		ProjectType:          req.ProjectType,
	}

	if err := h.projectRepo.Upsert(cfg); err != nil {
		log.Warn().Err(err).Str("project_key", cfg.ProjectKey).Msg("Project config rejected")
		respondError(c, err)
		return
	}

	logger.Audit(c.Request.Context(), logger.AuditEvent{
		Action:     logger.AuditActionConfigUpdate,
		Resource:   "project_forecasting_config",
		ResourceID: cfg.ProjectKey,
		Details: map[string]interface{}{
			"start":    req.ForecastingStartDate,
			"end":      req.ForecastingEndDate,
			"included": req.IncludeInForecasting,
		},
		Success: true,
	})

	c.JSON(http.StatusOK, model.Response{Success: true, Data: cfg})
}

// Get handles GET /api/v1/projects/:project/config
// @Summary      Get project config
// @Description  Returns one project's forecasting config
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        project path string true "Project key"
// @Success      200 {object} model.Response
// @Failure      404 {object} model.ErrorResponse
// @Router       /api/v1/projects/{project}/config [get]
func (h *ProjectConfigHandler) Get(c *gin.Context) {
	cfg, err := h.projectRepo.Get(c.Param("project"))
	if err != nil {
		respondError(c, err)
		return
	}
	if cfg == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Error:   "project config not found",
		})
		return
	}

	c.JSON(http.StatusOK, model.Response{Success: true, Data: cfg})
}

// ListIncluded handles GET /api/v1/projects/included
// @Summary      List included projects
// @Description  Returns the projects opted into forecasting
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} model.Response
// @Router       /api/v1/projects/included [get]
func (h *ProjectConfigHandler) ListIncluded(c *gin.Context) {
	configs, err := h.projectRepo.ListIncluded()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    configs,
		Meta:    &model.Meta{Total: len(configs)},
	})
}
