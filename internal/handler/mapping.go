package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleberrangel/epic-forecast-api/internal/classifier"
	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/metrics"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
	"github.com/cleberrangel/epic-forecast-api/internal/repository"
)

// MappingHandler manages the epic category mappings
type MappingHandler struct {
	mappingRepo *repository.MappingRepository
	classifier  *classifier.Classifier
}

// NewMappingHandler creates a new mapping handler
func NewMappingHandler(mappingRepo *repository.MappingRepository, cls *classifier.Classifier) *MappingHandler {
	return &MappingHandler{
		mappingRepo: mappingRepo,
		classifier:  cls,
	}
}

// Override handles POST /api/v1/mappings/override - manual category decision
// @Summary      Override mapping
// @Description  Records a manual category for an epic; manual decisions are never overwritten by reclassification
// @Tags         mappings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body model.MappingOverrideRequest true "Manual mapping"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Router       /api/v1/mappings/override [post]
func (h *MappingHandler) Override(c *gin.Context) {
	log := logger.FromGin(c)

	var req model.MappingOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	category, err := model.ParseCategory(req.Category)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.classifier.Override(c.Request.Context(), req.EpicKey, req.EpicSummary, category); err != nil {
		log.Warn().Err(err).Str("epic_key", req.EpicKey).Msg("Mapping override failed")
		respondError(c, err)
		return
	}
	metrics.Get().IncrementMappingOverridden()

	c.JSON(http.StatusOK, model.Response{Success: true})
}

// List handles GET /api/v1/mappings - summary cache with provenance
// @Summary      List mappings
// @Description  Returns the summary-keyed mappings with confidence and provenance, newest first
// @Tags         mappings
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} model.Response
// @Router       /api/v1/mappings [get]
func (h *MappingHandler) List(c *gin.Context) {
	mappings, err := h.mappingRepo.ListBaselineMappings()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    mappings,
		Meta:    &model.Meta{Total: len(mappings)},
	})
}

// ListUnmapped handles GET /api/v1/mappings/unmapped - epics pending manual mapping
// @Summary      List unmapped epics
// @Description  Returns epics present in the hour corpus with no category mapping
// @Tags         mappings
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} model.Response
// @Router       /api/v1/mappings/unmapped [get]
func (h *MappingHandler) ListUnmapped(c *gin.Context) {
	epics, err := h.mappingRepo.ListUnmappedEpics()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    epics,
		Meta:    &model.Meta{Total: len(epics)},
	})
}

// Categories handles GET /api/v1/categories - the fixed taxonomy
// @Summary      List categories
// @Description  Returns the fixed category taxonomy in display order
// @Tags         mappings
// @Produce      json
// @Success      200 {object} model.Response
// @Router       /api/v1/categories [get]
func (h *MappingHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, model.Response{Success: true, Data: model.Categories()})
}
