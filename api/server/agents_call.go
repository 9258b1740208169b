package server

import (
	"net/http"

	"github.com/agentdproject/agentd/api"
	"github.com/agentdproject/agentd/api/models"
	"github.com/gin-gonic/gin"
)

// handleAgentCall runs one agent function. Synchronous calls block for the
// value, bounded by max_timeout; asynchronous calls come back immediately
// with a task id to poll.
func (s *Server) handleAgentCall(c *gin.Context) {
	ctx := c.Request.Context()

	var wrapper models.CallWrapper
	if err := c.ShouldBindJSON(&wrapper); err != nil {
		handleErrorResponse(c, models.ErrInvalidJSON)
		return
	}

	result, err := s.worker.Call(ctx, c.Param(api.ParamAgentID), wrapper.Func, wrapper.Args, wrapper.Async)
	if err != nil {
		handleErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CallResponse{OK: true, Value: result.Value, TaskID: result.TaskID})
}
