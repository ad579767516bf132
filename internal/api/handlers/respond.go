package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spherical/doc-converter/internal/domain"
)

// ErrorDTO is the body of every failed API response.
type ErrorDTO struct {
	Error       string `json:"error"`
	Code        string `json:"code"`
	Detail      string `json:"detail,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, detail string) {
	writeJSON(w, status, ErrorDTO{
		Error:  message,
		Code:   code,
		Detail: detail,
	})
}

// writeDomainError maps err onto a status code and error body.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)

	resp := ErrorDTO{
		Error:       message(err),
		Code:        code,
		Detail:      err.Error(),
		Recoverable: domain.IsRecoverable(err),
	}
	writeJSON(w, status, resp)
}

// StatusFor returns the HTTP status and error code for a conversion error.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "cancelled"
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, "too_large"
	}

	errType := domain.TypeOf(err)
	switch errType {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest, string(errType)
	case domain.ErrorTypeUnsupportedConversion:
		return http.StatusUnsupportedMediaType, string(errType)
	case domain.ErrorTypeUnreadableDocument, domain.ErrorTypeNoTableFound:
		return http.StatusUnprocessableEntity, string(errType)
	case domain.ErrorTypeConfig:
		return http.StatusServiceUnavailable, string(errType)
	case domain.ErrorTypeEncodingFailure, domain.ErrorTypeIO, domain.ErrorTypeAPI:
		return http.StatusInternalServerError, string(errType)
	}
	return http.StatusInternalServerError, "internal"
}

func message(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "conversion timed out"
	}
	return "conversion failed"
}
