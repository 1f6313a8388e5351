package ingest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/luki-ev/synod-bug-report/internal/apperrors"
	"github.com/luki-ev/synod-bug-report/internal/handler"
	"github.com/luki-ev/synod-bug-report/internal/metrics"
	"github.com/luki-ev/synod-bug-report/internal/report"
	"github.com/luki-ev/synod-bug-report/internal/validation"
	"github.com/rs/zerolog/log"
)

// Error codes of rejected reports
const (
	CodeMalformedInput   = "malformed_input"
	CodeValidationFailed = "validation_failed"
	CodeDuplicateEntry   = "duplicate_entry"
)

// HandleReportUpload handles POST /api/v1/reports
func HandleReportUpload(factory *report.Factory, h handler.Handler, limits UploadLimits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := apperrors.GetRequestID(ctx)

		r.Body = http.MaxBytesReader(w, r.Body, limits.MaxTotalBytes)

		root, err := ParseMultipart(r.Body, r.Header.Get("Content-Type"), limits)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				metrics.ReportsRejected.WithLabelValues(apperrors.CodePayloadTooLarge).Inc()
				apperrors.WritePayloadTooLarge(w, r, fmt.Sprintf("Upload exceeds maximum size of %d bytes", limits.MaxTotalBytes))
				return
			}

			log.Info().
				Err(err).
				Str("request_id", requestID).
				Msg("Malformed report upload")
			metrics.ReportsRejected.WithLabelValues(CodeMalformedInput).Inc()
			apperrors.WriteError(w, r, http.StatusBadRequest, CodeMalformedInput, err.Error())
			return
		}

		rep, err := factory.FromMultipart(root)
		if err != nil {
			writeReportError(w, r, err)
			return
		}

		if err := h.HandleReport(ctx, rep); err != nil {
			if _, ok := validation.AsError(err); ok {
				writeReportError(w, r, err)
				return
			}
			log.Error().
				Err(err).
				Str("request_id", requestID).
				Str("device_id", rep.Value("device_id", "")).
				Msg("Failed to handle bug report")
			metrics.HandlerFailures.Inc()
			apperrors.WriteInternalError(w, r, "Failed to process bug report")
			return
		}

		metrics.ReportsAccepted.Inc()
		metrics.ReportFiles.Observe(float64(rep.FileCount()))

		log.Info().
			Str("request_id", requestID).
			Str("device_id", rep.Value("device_id", "")).
			Int("values", len(rep.AllValues())).
			Int("files", rep.FileCount()).
			Int("labels", len(rep.Labels())).
			Msg("Bug report accepted")

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "accepted",
		})
	}
}

// writeReportError maps report construction errors to 400 responses.
func writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	code := CodeMalformedInput
	field := ""

	if verr, ok := validation.AsError(err); ok {
		code = verr.Kind.String()
		field = verr.FieldPath
	} else if !errors.Is(err, report.ErrMalformedInput) {
		log.Error().
			Err(err).
			Str("request_id", apperrors.GetRequestID(r.Context())).
			Msg("Unexpected error while building bug report")
		metrics.ReportsRejected.WithLabelValues(apperrors.CodeInternal).Inc()
		apperrors.WriteInternalError(w, r, "Failed to process bug report")
		return
	}

	log.Info().
		Err(err).
		Str("request_id", apperrors.GetRequestID(r.Context())).
		Str("code", code).
		Str("field", field).
		Msg("Invalid bug report")

	metrics.ReportsRejected.WithLabelValues(code).Inc()
	apperrors.WriteFieldError(w, r, http.StatusBadRequest, code, err.Error(), field)
}
