package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nifargo/todo-app-server/internal/models"
)

// Guest endpoints serve devices that have not signed in. Tasks live in
// the guest store keyed by an opaque device-generated identifier; on
// sign-in the client replays them through the sync endpoint.
const guestIDHeader = "X-Guest-ID"

func guestID(c *gin.Context) (string, bool) {
	id := c.GetHeader(guestIDHeader)
	if id == "" {
		abort(c, newBadRequestError("no guest id provided"))
		return "", false
	}
	return id, true
}

func (h *handlerImpl) HandleGetGuestTasks(c *gin.Context) {
	id, ok := guestID(c)
	if !ok {
		return
	}

	tasks, err := h.guest.Tasks(c, id)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to fetch guest tasks")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type putGuestTasksRequest struct {
	Tasks []models.Task `json:"tasks"`
}

func (h *handlerImpl) HandlePutGuestTasks(c *gin.Context) {
	id, ok := guestID(c)
	if !ok {
		return
	}

	var req putGuestTasksRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	merged, err := h.guest.MergeRemote(c, id, req.Tasks)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to save guest tasks")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": merged})
}
