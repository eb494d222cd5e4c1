package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/applysync/internal/apperror"
	"github.com/sakif/applysync/internal/service"
)

// maxBodyBytes caps the request body; a subscription is one short field.
const maxBodyBytes = 100 << 10

// Subscriber is the part of the service layer the handler needs.
// Accepting an interface keeps handler tests free of any store.
type Subscriber interface {
	Submit(ctx context.Context, email string) (service.Outcome, error)
}

// SubscribeHandler serves POST /subscribe.
type SubscribeHandler struct {
	svc     Subscriber
	logger  *slog.Logger
	devMode bool
}

func NewSubscribeHandler(svc Subscriber, logger *slog.Logger, devMode bool) *SubscribeHandler {
	return &SubscribeHandler{svc: svc, logger: logger, devMode: devMode}
}

// errMissingEmail marks a body without an exact, non-null "email" key.
var errMissingEmail = errors.New(`missing "email" field`)

// decodeEmail reads {"email": "<string>"} from body.
//
// Struct decoding would match "EMAIL" or "Email" too, since encoding/json
// compares keys case-insensitively. Decoding into a map keeps the key exact.
// A non-string email fails the second Unmarshal, which we treat exactly like
// a malformed address.
func decodeEmail(body io.Reader) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		return "", err
	}

	raw, ok := fields["email"]
	if !ok || string(raw) == "null" {
		return "", errMissingEmail
	}

	var email string
	if err := json.Unmarshal(raw, &email); err != nil {
		return "", err
	}
	return email, nil
}

// HandleSubscribe validates and stores an email.
//
// HTTP: POST /subscribe
// REQUEST BODY: {"email": "new@example.com"}
//
//	201 new subscriber
//	200 already subscribed
//	400 malformed body or address
//	500 store failure
func (h *SubscribeHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	email, err := decodeEmail(r.Body)
	if err != nil {
		h.logger.Warn("invalid subscribe body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("email", service.MessageInvalidEmail), h.devMode)
		return
	}

	outcome, err := h.svc.Submit(r.Context(), email)
	switch outcome {
	case service.OutcomeSubscribed:
		WriteJSON(w, http.StatusCreated, Response{Success: true, Message: service.MessageSubscribed})
	case service.OutcomeAlreadySubscribed:
		WriteJSON(w, http.StatusOK, Response{Success: true, Message: service.MessageAlreadySubscribed})
	default:
		if err == nil {
			err = fmt.Errorf("unexpected outcome %s without error", outcome)
		}
		writeError(w, err, h.devMode)
	}
}
