package apperrors

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Error codes shared by every endpoint. Report rejections add their own
// codes, see the ingest package.
const (
	CodeInternal           = "internal_error"
	CodeNotFound           = "not_found"
	CodePayloadTooLarge    = "payload_too_large"
	CodeServiceUnavailable = "service_unavailable"
	CodeTooManyRequests    = "too_many_requests"
)

// ErrorResponse is the body of every failed request:
//
//	{"error":{"code":"...","message":"...","request_id":"...","field":"..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request. Field names the offending part
// of a submission and is omitted when the failure is not tied to one.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Field     string `json:"field,omitempty"`
}

// SuccessResponse is the body of every successful request
type SuccessResponse struct {
	RequestID string `json:"request_id"`
	Data      any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Int("status", statusCode).Msg("Failed to write response body")
	}
}

// WriteDetail writes detail with the request ID of r filled in.
func WriteDetail(w http.ResponseWriter, r *http.Request, statusCode int, detail ErrorDetail) {
	detail.RequestID = GetRequestID(r.Context())
	writeJSON(w, statusCode, ErrorResponse{Error: detail})
}

// WriteError writes an error that is not tied to a field.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	WriteDetail(w, r, statusCode, ErrorDetail{Code: code, Message: message})
}

// WriteFieldError writes an error naming the offending field.
func WriteFieldError(w http.ResponseWriter, r *http.Request, statusCode int, code, message, field string) {
	WriteDetail(w, r, statusCode, ErrorDetail{Code: code, Message: message, Field: field})
}

// WriteSuccess wraps data in the success envelope.
func WriteSuccess(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	writeJSON(w, statusCode, SuccessResponse{
		RequestID: GetRequestID(r.Context()),
		Data:      data,
	})
}

func WriteServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

func WriteInternalError(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusInternalServerError, CodeInternal, message)
}

func WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusNotFound, CodeNotFound, message)
}

func WritePayloadTooLarge(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// WriteTooManyRequests writes a 429. A positive retryAfter is sent as
// Retry-After, rounded up to whole seconds.
func WriteTooManyRequests(w http.ResponseWriter, r *http.Request, message string, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	WriteError(w, r, http.StatusTooManyRequests, CodeTooManyRequests, message)
}
