package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/graph"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errBodyTooLarge struct{ limit int64 }

func (e errBodyTooLarge) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.limit)
}

// statusFor maps an error to its HTTP status and response body.
func statusFor(err error) (int, errorResponse) {
	var tooLarge errBodyTooLarge
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, errorResponse{Code: string(elkerrors.ErrCodeInvalidInput), Message: err.Error()}
	}
	var serverErr *graph.ServerError
	if errors.As(err, &serverErr) {
		return http.StatusBadGateway, errorResponse{Code: string(elkerrors.ErrCodeServerError), Message: serverErr.Error()}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Code: string(elkerrors.ErrCodeTimeout), Message: "layout timed out"}
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, errorResponse{Code: string(elkerrors.ErrCodeServerUnavailable), Message: "request cancelled"}
	}

	code := elkerrors.GetCode(err)
	resp := errorResponse{Code: string(code), Message: elkerrors.UserMessage(err)}
	switch {
	case elkerrors.IsInvalid(err):
		return http.StatusBadRequest, resp
	case elkerrors.IsServer(err):
		return http.StatusBadGateway, resp
	case code == elkerrors.ErrCodeNotFound || code == elkerrors.ErrCodeFileNotFound:
		return http.StatusNotFound, resp
	}
	if code == "" {
		resp.Code = string(elkerrors.ErrCodeInternal)
	}
	return http.StatusInternalServerError, resp
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Debug("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}
