package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/golang/glog"

	"medquiz-service/internal/domain"
	"medquiz-service/internal/identity"
)

// HTTPMessage is the body of every error response.
type HTTPMessage struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
	// Errors lists authoring defects for validation failures.
	Errors []*domain.ValidationError `json:"errors,omitempty"`
}

func ReturnHTTPMessage(w http.ResponseWriter, r *http.Request, httpStatus int, messageType string, message string) {
	writeMessage(w, HTTPMessage{
		Type:    messageType,
		Status:  strconv.Itoa(httpStatus),
		Message: message,
	}, httpStatus)
}

// ReturnJSON writes v with status.
func ReturnJSON(w http.ResponseWriter, httpStatus int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		glog.Warningf("http: encode response: %v", err)
	}
}

// ReturnError maps err to a status code and writes it as an HTTPMessage.
func ReturnError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	msg := HTTPMessage{
		Type:    kind,
		Status:  strconv.Itoa(status),
		Message: err.Error(),
	}

	var single *domain.ValidationError
	var all domain.ValidationErrors
	switch {
	case errors.As(err, &all):
		msg.Errors = all
	case errors.As(err, &single):
		msg.Errors = []*domain.ValidationError{single}
	}

	if status >= http.StatusInternalServerError {
		glog.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		glog.V(2).Infof("%s %s: %d %v", r.Method, r.URL.Path, status, err)
	}
	writeMessage(w, msg, status)
}

func writeMessage(w http.ResponseWriter, msg HTTPMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(msg)
}

// classify returns the HTTP status and message type for err. The type is
// also used as the code of websocket error messages.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrInvalidSettings),
		errors.Is(err, domain.ErrInvalidLabel):
		return http.StatusBadRequest, "badrequest"
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrConfigurationNotFound):
		return http.StatusNotFound, "notfound"
	case errors.Is(err, domain.ErrInvalidPhase),
		errors.Is(err, domain.ErrDoubtInFlight),
		errors.Is(err, domain.ErrLoadInFlight),
		errors.Is(err, domain.ErrNothingToSubmit):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrDoubtServiceUnavailable),
		errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "error"
}
