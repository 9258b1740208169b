package models

import (
	"errors"
	"net/http"
)

// StatusClientClosedRequest is nginx's non-standard code for a caller that
// went away mid request. Kept under 500 so disconnects log as info, they
// are the caller's doing, not ours.
const StatusClientClosedRequest = 499

var (
	ErrInvalidJSON = err{
		code:  http.StatusBadRequest,
		error: errors.New("Invalid JSON"),
	}
	ErrCallTimeout = err{
		code:  http.StatusGatewayTimeout,
		error: errors.New("Timed out"),
	}
	ErrCallCancelled = err{
		code:  StatusClientClosedRequest,
		error: errors.New("Call cancelled by caller"),
	}
	ErrAgentsMissingID = err{
		code:  http.StatusBadRequest,
		error: errors.New("Missing agent id"),
	}
	ErrAgentsInvalidID = err{
		code:  http.StatusBadRequest,
		error: errors.New("Invalid agent id"),
	}
	ErrAgentsAlreadyExists = err{
		code:  http.StatusConflict,
		error: errors.New("Agent already exists"),
	}
	ErrAgentsNotFound = err{
		code:  http.StatusNotFound,
		error: errors.New("Agent not found"),
	}
	ErrAgentsAtCapacity = err{
		code:  http.StatusTooManyRequests,
		error: errors.New("Agent registry at capacity and no agent is idle past expiry"),
	}
	ErrFuncsMissingName = err{
		code:  http.StatusBadRequest,
		error: errors.New("Missing function name"),
	}
	ErrFuncsNotFound = err{
		code:  http.StatusBadRequest,
		error: errors.New("Function not supported by agent"),
	}
	ErrTasksNotFound = err{
		code:  http.StatusNotFound,
		error: errors.New("Task not found or expired"),
	}
	ErrTasksMissingID = err{
		code:  http.StatusBadRequest,
		error: errors.New("Missing task id"),
	}
	ErrDispatchQueueFull = err{
		code:  http.StatusTooManyRequests,
		error: errors.New("Dispatch queue full"),
	}
	ErrFilesMissingPath = err{
		code:  http.StatusBadRequest,
		error: errors.New("Missing file path"),
	}
	ErrFilesNotFound = err{
		code:  http.StatusNotFound,
		error: errors.New("File not found or unreadable"),
	}
	ErrConfigsInvalid = err{
		code:  http.StatusBadRequest,
		error: errors.New("Invalid model configs"),
	}
	ErrWorkerShutdown = err{
		code:  http.StatusServiceUnavailable,
		error: errors.New("Worker is shutting down"),
	}
)

// APIError any error that implements this interface will return an API
// response with the provided status code and error message body
type APIError interface {
	Code() int
	error
}

type err struct {
	code int
	error
}

func (e err) Code() int { return e.code }

func NewAPIError(code int, e error) APIError { return err{code, e} }

// Error is the uniform error output, every failed response carries ok=false
// plus a message.
type Error struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
