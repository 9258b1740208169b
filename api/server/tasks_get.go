package server

import (
	"net/http"

	"github.com/agentdproject/agentd/api"
	"github.com/agentdproject/agentd/api/models"
	"github.com/gin-gonic/gin"
)

// handleTaskGet is a single non-blocking poll of a placeholder. A pending
// or expired task is a 200 with the state in the body, callers retry on
// their own schedule.
func (s *Server) handleTaskGet(c *gin.Context) {
	ctx := c.Request.Context()

	task, err := s.worker.Poll(ctx, c.Param(api.ParamTaskID))
	if err != nil {
		if err == models.ErrTasksNotFound {
			c.JSON(http.StatusOK, models.TaskResponse{
				OK:     false,
				Status: models.TaskStatusExpired,
				Error:  err.Error(),
			})
			return
		}
		handleErrorResponse(c, err)
		return
	}

	resp := models.TaskResponse{Status: task.Status}
	switch task.Status {
	case models.TaskStatusReady:
		resp.OK = true
		resp.Value = task.Payload
	case models.TaskStatusFailed:
		resp.Error = task.Error
	}
	c.JSON(http.StatusOK, resp)
}
