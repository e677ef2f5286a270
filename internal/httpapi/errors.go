// Package httpapi is the thin HTTP CRUD and file surface over the record
// façade: a router, a small middleware chain, and a uniform JSON
// error-response shape in front of record.Store.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/logcar/logcar/internal/logcar/logcarerr"
	"github.com/logcar/logcar/internal/logger"
)

// ErrorCode identifies an application-level failure independent of the
// transport status code carrying it.
type ErrorCode string

const (
	ErrorCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrorCodeRecordNotFound    ErrorCode = "RECORD_NOT_FOUND"
	ErrorCodeMissingDeployment ErrorCode = "MISSING_DEPLOYMENT_ID"
	ErrorCodeDecryption        ErrorCode = "DECRYPTION_ERROR"
	ErrorCodeSearchBackend     ErrorCode = "SEARCH_BACKEND_ERROR"
	ErrorCodeFragmentBudget    ErrorCode = "FRAGMENT_BUDGET_EXCEEDED"
	ErrorCodeEmitFailed        ErrorCode = "EMIT_FAILED"
	ErrorCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON envelope every non-2xx response carries.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler maps errors from the record façade to HTTP status codes and
// writes the JSON error envelope.
type Handler struct {
	logger logger.Logger
}

// NewHandler builds an error Handler. A nil logger falls back to a no-op one.
func NewHandler(lg logger.Logger) *Handler {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	return &Handler{logger: lg}
}

// HandleError classifies err against the record façade's sentinel errors
// and writes the matching status code and error code.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	h.WriteErrorResponse(w, status, code, err.Error(), requestID(r))
}

func classify(err error) (int, ErrorCode) {
	switch {
	case errors.Is(err, logcarerr.ErrRecordNotFound):
		return http.StatusNotFound, ErrorCodeRecordNotFound
	case errors.Is(err, logcarerr.ErrMissingDeploymentID):
		return http.StatusPreconditionFailed, ErrorCodeMissingDeployment
	case errors.Is(err, logcarerr.ErrDecryptionError):
		return http.StatusUnprocessableEntity, ErrorCodeDecryption
	case errors.Is(err, logcarerr.ErrFragmentSequenceError), errors.Is(err, logcarerr.ErrEmptyFragmentSet):
		return http.StatusBadRequest, ErrorCodeInvalidRequest
	case errors.Is(err, logcarerr.ErrFragmentBudgetExceeded):
		return http.StatusRequestEntityTooLarge, ErrorCodeFragmentBudget
	case errors.Is(err, logcarerr.ErrSearchBackendError), errors.Is(err, logcarerr.ErrTimeout):
		return http.StatusBadGateway, ErrorCodeSearchBackend
	case errors.Is(err, logcarerr.ErrEmitFailed):
		return http.StatusBadGateway, ErrorCodeEmitFailed
	default:
		return http.StatusInternalServerError, ErrorCodeInternal
	}
}

// WriteErrorResponse writes a JSON error envelope with the given status,
// code, and message.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, status int, code ErrorCode, message, reqID string) {
	h.logger.Warn("http error response", "status", status, "error_code", string(code), "message", message, "request_id", reqID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{ //nolint:errcheck
		Status:    "error",
		ErrorCode: code,
		Message:   message,
		RequestID: reqID,
	})
}

// WriteValidationError writes a 400 with ErrorCodeInvalidRequest.
func (h *Handler) WriteValidationError(w http.ResponseWriter, r *http.Request, message string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID(r))
}
