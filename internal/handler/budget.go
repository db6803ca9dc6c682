package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/cleberrangel/epic-forecast-api/internal/repository"
)

// BudgetHandler manages epic budget placeholders and imports
type BudgetHandler struct {
	forecastRepo *repository.ForecastRepository
}

// NewBudgetHandler creates a new budget handler
func NewBudgetHandler(forecastRepo *repository.ForecastRepository) *BudgetHandler {
	return &BudgetHandler{forecastRepo: forecastRepo}
}

// UpsertPlaceholder handles POST /api/v1/budgets/placeholder
// @Summary      Upsert budget placeholder
// @Description  Creates or updates a placeholder budget; never overwrites imported hours
// @Tags         budgets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body model.BudgetPlaceholderRequest true "Placeholder budget"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Router       /api/v1/budgets/placeholder [post]
func (h *BudgetHandler) UpsertPlaceholder(c *gin.Context) {
	log := logger.FromGin(c)

	var req model.BudgetPlaceholderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	budget := model.EpicBudget{
		ProjectKey:    req.ProjectKey,
		EpicKey:       req.EpicKey,
		EpicName:      req.EpicName,
		Hours:         req.Hours,
		IsPlaceholder: true,
	}
	if err := h.forecastRepo.UpsertPlaceholder(budget); err != nil {
		log.Warn().Err(err).Str("epic_key", req.EpicKey).Msg("Budget placeholder rejected")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{Success: true, Data: budget})
}

// Import handles POST /api/v1/budgets/import
// @Summary      Import budget
// @Description  Replaces a placeholder with imported hours and stamps the source
// @Tags         budgets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body model.BudgetImportRequest true "Imported budget"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Router       /api/v1/budgets/import [post]
func (h *BudgetHandler) Import(c *gin.Context) {
	log := logger.FromGin(c)

	var req model.BudgetImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.forecastRepo.ImportBudget(req.ProjectKey, req.EpicKey, req.EpicName, req.Hours, req.Source); err != nil {
		log.Warn().Err(err).Str("epic_key", req.EpicKey).Msg("Budget import failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{Success: true})
}

// ListByProject handles GET /api/v1/projects/:project/budgets
// @Summary      List project budgets
// @Description  Returns a project's budget rows, placeholders included
// @Tags         budgets
// @Produce      json
// @Security     BearerAuth
// @Param        project path string true "Project key"
// @Success      200 {object} model.Response
// @Router       /api/v1/projects/{project}/budgets [get]
func (h *BudgetHandler) ListByProject(c *gin.Context) {
	budgets, err := h.forecastRepo.ListBudgets(c.Param("project"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    budgets,
		Meta:    &model.Meta{Total: len(budgets)},
	})
}
