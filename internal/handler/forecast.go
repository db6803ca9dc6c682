package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/cleberrangel/epic-forecast-api/internal/service"
)

// ForecastHandler handles forecast generation, reads and export
type ForecastHandler struct {
	forecastService *service.ForecastService
	exportService   *service.ExportService
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(forecastService *service.ForecastService, exportService *service.ExportService) *ForecastHandler {
	return &ForecastHandler{
		forecastService: forecastService,
		exportService:   exportService,
	}
}

// Generate handles POST /api/v1/forecasts - generate a forecast
// @Summary      Generate forecast
// @Description  Classifies the epic, applies the learned baselines and persists an immutable forecast
// @Tags         forecasts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body model.ForecastRequest true "Forecast request"
// @Success      201 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Failure      401 {object} model.ErrorResponse
// @Failure      422 {object} model.ErrorResponse
// @Router       /api/v1/forecasts [post]
func (h *ForecastHandler) Generate(c *gin.Context) {
	log := logger.FromGin(c)

	var req model.ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	forecast, err := h.forecastService.Generate(c.Request.Context(), req)
	if err != nil {
		log.Warn().Err(err).Str("project_key", req.ProjectKey).Str("epic_name", req.EpicName).
			Msg("Forecast generation failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.Response{Success: true, Data: forecast})
}

// GetByID handles GET /api/v1/forecasts/:id
// @Summary      Get forecast
// @Description  Returns one persisted forecast by ID
// @Tags         forecasts
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Forecast ID"
// @Success      200 {object} model.Response
// @Failure      404 {object} model.ErrorResponse
// @Router       /api/v1/forecasts/{id} [get]
func (h *ForecastHandler) GetByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondBadRequest(c, fmt.Errorf("forecast id must be numeric: %w", err))
		return
	}

	forecast, err := h.forecastService.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if forecast == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Error:   "forecast not found",
		})
		return
	}

	c.JSON(http.StatusOK, model.Response{Success: true, Data: forecast})
}

// ListByProject handles GET /api/v1/projects/:project/forecasts
// @Summary      List project forecasts
// @Description  Returns a project's forecasts, newest first
// @Tags         forecasts
// @Produce      json
// @Security     BearerAuth
// @Param        project path string true "Project key"
// @Success      200 {object} model.Response
// @Router       /api/v1/projects/{project}/forecasts [get]
func (h *ForecastHandler) ListByProject(c *gin.Context) {
	forecasts, err := h.forecastService.ListByProject(c.Param("project"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    forecasts,
		Meta:    &model.Meta{Total: len(forecasts)},
	})
}

// Export handles GET /api/v1/forecasts/:id/export - download as XLSX
// @Summary      Export forecast
// @Description  Renders one forecast as an XLSX workbook
// @Tags         forecasts
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        id path int true "Forecast ID"
// @Success      200 {file} binary
// @Failure      404 {object} model.ErrorResponse
// @Router       /api/v1/forecasts/{id}/export [get]
func (h *ForecastHandler) Export(c *gin.Context) {
	log := logger.FromGin(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondBadRequest(c, fmt.Errorf("forecast id must be numeric: %w", err))
		return
	}

	forecast, err := h.forecastService.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if forecast == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Error:   "forecast not found",
		})
		return
	}

	buf, err := h.exportService.ForecastWorkbook(c.Request.Context(), forecast)
	if err != nil {
		log.Error().Err(err).Int("forecast_id", id).Msg("Forecast export failed")
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("forecast-%s-%d.xlsx", forecast.ProjectKey, forecast.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
