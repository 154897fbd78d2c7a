package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/services"
)

type FilterPresetHandler struct {
	presetService services.FilterPresetService
}

func NewFilterPresetHandler(presetService services.FilterPresetService) *FilterPresetHandler {
	return &FilterPresetHandler{presetService: presetService}
}

func (h *FilterPresetHandler) List(c *gin.Context) {
	presets, err := h.presetService.ListPresets(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, presets)
}

func (h *FilterPresetHandler) Create(c *gin.Context) {
	var in services.FilterPresetInput
	if !bindJSON(c, &in) {
		return
	}

	preset, err := h.presetService.CreatePreset(c.Request.Context(), middleware.IdentityFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, preset)
}

func (h *FilterPresetHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.UpdateFilterPresetInput
	if !bindJSON(c, &in) {
		return
	}

	preset, err := h.presetService.UpdatePreset(c.Request.Context(), middleware.IdentityFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preset)
}

func (h *FilterPresetHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.presetService.DeletePreset(c.Request.Context(), middleware.IdentityFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
