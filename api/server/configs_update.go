package server

import (
	"encoding/json"
	"net/http"

	"github.com/agentdproject/agentd/api/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleModelConfigsSet(c *gin.Context) {
	ctx := c.Request.Context()

	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		handleErrorResponse(c, models.ErrInvalidJSON)
		return
	}

	if err := s.worker.SetModelConfigs(ctx, raw); err != nil {
		handleErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{OK: true, Message: "Model configs updated"})
}
