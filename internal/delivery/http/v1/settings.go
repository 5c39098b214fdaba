package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nifargo/todo-app-server/internal/models"
	"github.com/Nifargo/todo-app-server/internal/services"
)

func (h *handlerImpl) HandleGetSettings(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	settings, err := h.settings.GetSettings(c, userID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to fetch settings")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, settings)
}

type putSettingsRequest struct {
	NotificationsEnabled bool   `json:"notifications_enabled"`
	Timezone             string `json:"timezone" binding:"required"`
}

func (h *handlerImpl) HandlePutSettings(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	var req putSettingsRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	settings := models.UserSettings{
		UserID:               userID,
		NotificationsEnabled: req.NotificationsEnabled,
		Timezone:             req.Timezone,
	}
	err = h.settings.PutSettings(c, settings)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to save settings")
		switch {
		case errors.Is(err, services.ErrInvalidTimezone):
			abort(c, newBadRequestError(services.ErrInvalidTimezone.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	c.JSON(http.StatusOK, settings)
}
