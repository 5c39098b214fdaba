package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nifargo/todo-app-server/internal/services"
)

type createNoteRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *handlerImpl) HandleCreateNote(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	var req createNoteRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	note, err := h.notes.CreateNote(c, services.CreateNoteParams{
		UserID:  userID,
		Content: req.Content,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create note")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusCreated, note)
}

func (h *handlerImpl) HandleGetNotes(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	notes, err := h.notes.GetNotesByUserID(c, userID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to fetch notes")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, notes)
}

type updateNoteRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *handlerImpl) HandleUpdateNote(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	noteID := c.Param("id")
	if noteID == "" {
		abort(c, newBadRequestError("no note id provided"))
		return
	}

	var req updateNoteRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	note, err := h.notes.UpdateNote(c, services.UpdateNoteParams{
		ID:      noteID,
		UserID:  userID,
		Content: req.Content,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to update note")
		switch {
		case errors.Is(err, services.ErrNoteNotFound):
			abort(c, newNotFoundError(services.ErrNoteNotFound.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	c.JSON(http.StatusOK, note)
}

type shareNoteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *handlerImpl) HandleShareNote(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	noteID := c.Param("id")
	if noteID == "" {
		abort(c, newBadRequestError("no note id provided"))
		return
	}

	var req shareNoteRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	note, err := h.notes.ShareNote(c, userID, noteID, req.Email)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to share note")
		switch {
		case errors.Is(err, services.ErrNoteNotFound):
			abort(c, newNotFoundError(services.ErrNoteNotFound.Error()))
		case errors.Is(err, services.ErrUserNotFound):
			abort(c, newNotFoundError(services.ErrUserNotFound.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	c.JSON(http.StatusOK, note)
}

func (h *handlerImpl) HandleDeleteNote(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	noteID := c.Param("id")
	if noteID == "" {
		abort(c, newBadRequestError("no note id provided"))
		return
	}

	err := h.notes.DeleteNote(c, userID, noteID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to delete note")
		switch {
		case errors.Is(err, services.ErrNoteNotFound):
			abort(c, newNotFoundError(services.ErrNoteNotFound.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	c.Status(http.StatusNoContent)
}
