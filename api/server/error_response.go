package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentdproject/agentd/api/common"
	"github.com/agentdproject/agentd/api/models"
	"github.com/gin-gonic/gin"
)

// ErrInternalServerError hides the cause of an unexpected failure from the
// caller, details go to the logs only.
var ErrInternalServerError = errors.New("internal server error")

func simpleError(err error) *models.Error {
	return &models.Error{OK: false, Error: err.Error()}
}

func handleErrorResponse(c *gin.Context, err error) {
	WriteError(c.Request.Context(), c.Writer, err)
}

// WriteError translates an error into the uniform JSON error body. Errors
// implementing models.APIError pick their own status code, anything else is
// masked as a 500.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	log := common.Logger(ctx)

	code := http.StatusInternalServerError
	if apiErr, ok := err.(models.APIError); ok {
		code = apiErr.Code()
	}

	if code >= 500 {
		log.WithError(err).WithFields(map[string]interface{}{"code": code}).Error("api error")
		err = ErrInternalServerError
	} else {
		log.WithError(err).WithFields(map[string]interface{}{"code": code}).Info("api error")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if werr := json.NewEncoder(w).Encode(simpleError(err)); werr != nil {
		log.WithError(werr).Error("error writing error response")
	}
}
