package handler

// RESPONSE HELPERS:
// Every client-facing body has the same shape:
//
//	{"success": false, "message": "Please provide a valid email address"}
//
// so the frontend can always read `success` and `message`, whatever the status.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/applysync/internal/apperror"
)

// Response is the standard envelope for subscription and error replies.
// Error carries internal detail and is only filled in development mode.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Fixed messages for errors raised outside the subscription flow.
const (
	MessageInternal         = "Internal server error"
	MessageNotFound         = "Not found"
	MessageMethodNotAllowed = "Method not allowed"
)

// WriteJSON sends data as JSON with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written; once Encode
// writes, header changes are silently ignored.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to a status code and the envelope.
//
// The client only ever sees AppError.Message. In devMode the wrapped cause is
// echoed as "error" to speed up local debugging; production never leaks it.
func writeError(w http.ResponseWriter, err error, devMode bool) {
	status := http.StatusInternalServerError
	resp := Response{Success: false, Message: MessageInternal}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		}
		if devMode && appErr.Err != nil && status == http.StatusInternalServerError {
			resp.Error = appErr.Err.Error()
		}
	} else if devMode {
		resp.Error = err.Error()
	}

	WriteJSON(w, status, resp)
}

// NotFound answers unknown routes with the JSON envelope.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusNotFound, Response{Success: false, Message: MessageNotFound})
}

// MethodNotAllowed answers known routes hit with the wrong verb.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusMethodNotAllowed, Response{Success: false, Message: MessageMethodNotAllowed})
}
