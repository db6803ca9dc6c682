package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/cleberrangel/epic-forecast-api/internal/repository"
	"github.com/cleberrangel/epic-forecast-api/internal/service"
)

// BaselineHandler exposes the learned baselines and the recompute trigger
type BaselineHandler struct {
	baselineRepo     *repository.BaselineRepository
	recomputeService *service.RecomputeService
}

// NewBaselineHandler creates a new baseline handler
func NewBaselineHandler(baselineRepo *repository.BaselineRepository, recomputeService *service.RecomputeService) *BaselineHandler {
	return &BaselineHandler{
		baselineRepo:     baselineRepo,
		recomputeService: recomputeService,
	}
}

// ListHourBaselines handles GET /api/v1/baselines/hours
// @Summary      List hour baselines
// @Description  Returns the per-category hour-distribution statistics
// @Tags         baselines
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} model.Response
// @Router       /api/v1/baselines/hours [get]
func (h *BaselineHandler) ListHourBaselines(c *gin.Context) {
	baselines, err := h.baselineRepo.GetHourBaselines()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{Success: true, Data: baselines})
}

// ListAllocationBaselines handles GET /api/v1/baselines/allocation
// @Summary      List allocation baselines
// @Description  Returns each category's learned share of total project hours
// @Tags         baselines
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} model.Response
// @Router       /api/v1/baselines/allocation [get]
func (h *BaselineHandler) ListAllocationBaselines(c *gin.Context) {
	baselines, err := h.baselineRepo.GetAllocationBaselines()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{Success: true, Data: baselines})
}

// ListTemporalBaselines handles GET /api/v1/baselines/temporal
// @Summary      List temporal baselines
// @Description  Returns the per-team timeline decile patterns
// @Tags         baselines
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} model.Response
// @Router       /api/v1/baselines/temporal [get]
func (h *BaselineHandler) ListTemporalBaselines(c *gin.Context) {
	baselines, err := h.baselineRepo.GetTemporalBaselines()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{Success: true, Data: baselines})
}

// Recompute handles POST /api/v1/baselines/recompute
// @Summary      Recompute baselines
// @Description  Rebuilds every baseline from the full history; 409 when a run is in progress
// @Tags         baselines
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} model.Response
// @Failure      409 {object} model.ErrorResponse
// @Router       /api/v1/baselines/recompute [post]
func (h *BaselineHandler) Recompute(c *gin.Context) {
	log := logger.FromGin(c)

	result, err := h.recomputeService.Run(c.Request.Context())
	if err != nil {
		log.Warn().Err(err).Msg("Baseline recomputation failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    result,
		Meta:    &model.Meta{Warnings: result.Warnings},
	})
}
