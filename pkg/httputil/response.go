package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/folio/pkg/errs"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// StatusFor maps a domain error kind to an HTTP status code.
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.PermissionDenied:
		return http.StatusForbidden
	case errs.NotFound:
		return http.StatusNotFound
	case errs.SubmissionsClosed, errs.InvalidTransition, errs.Conflict:
		return http.StatusConflict
	case errs.Validation:
		return http.StatusBadRequest
	case errs.QuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes err using its errs.Kind. Errors without a kind are
// logged and reported as a generic 500 so storage details never leak.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := StatusFor(kind)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		WriteErrorMessage(w, status, "internal server error")
		return
	}

	resp := ErrorResponse{Error: kind.String()}
	var e *errs.Error
	if errors.As(err, &e) {
		resp.Field = e.Field
	}
	WriteJSON(w, status, resp)
}
