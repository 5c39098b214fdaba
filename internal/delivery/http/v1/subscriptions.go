package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nifargo/todo-app-server/internal/services"
)

type registerSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

func (h *handlerImpl) HandleRegisterSubscription(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	var req registerSubscriptionRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	subscription, err := h.subscriptions.RegisterSubscription(c, services.RegisterSubscriptionParams{
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to register subscription")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusCreated, subscription)
}

func (h *handlerImpl) HandleGetSubscriptions(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	subscriptions, err := h.subscriptions.GetSubscriptionsByUserID(c, userID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to fetch subscriptions")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, subscriptions)
}

func (h *handlerImpl) HandleDeleteSubscription(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	subscriptionID := c.Param("id")
	if subscriptionID == "" {
		abort(c, newBadRequestError("no subscription id provided"))
		return
	}

	// Scoped to the caller so one user cannot drop another user's
	// endpoint by guessing its id.
	err := h.subscriptions.DeleteUserSubscription(c, userID, subscriptionID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to delete subscription")
		switch {
		case errors.Is(err, services.ErrSubscriptionNotFound):
			abort(c, newNotFoundError(services.ErrSubscriptionNotFound.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	c.Status(http.StatusNoContent)
}
