package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"safedrive/internal/domain"
	"safedrive/internal/service"
)

// SettingsHandler handles admin settings requests.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// SetSettingRequest is the HTTP request body for updating a setting.
type SetSettingRequest struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// SettingResponse is the HTTP representation of a setting.
type SettingResponse struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func settingResponse(s *domain.Setting) SettingResponse {
	r := SettingResponse{
		Key:         s.Key,
		Value:       s.Value,
		Description: s.Description,
	}
	if !s.UpdatedAt.IsZero() {
		r.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	return r
}

// GetSetting handles GET /v1/admin/settings/:key
func (h *SettingsHandler) GetSetting(c *gin.Context) {
	setting, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, settingResponse(setting))
}

// SetSetting handles PUT /v1/admin/settings/:key
func (h *SettingsHandler) SetSetting(c *gin.Context) {
	var req SetSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Value == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "value is required"})
		return
	}

	key := c.Param("key")
	if err := h.settings.Set(c.Request.Context(), key, req.Value, req.Description); err != nil {
		respondError(c, err)
		return
	}

	setting, err := h.settings.Get(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, settingResponse(setting))
}
