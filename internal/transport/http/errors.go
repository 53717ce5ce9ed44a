package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kedh/regcore/pkg/errs"
)

// writeError centralizes coded-error translation to HTTP responses so every
// handler emits the same JSON envelope.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := errs.CodeOf(err)
	status := statusOf(code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", code, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}

func statusOf(code errs.Code) int {
	switch code {
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeStateMismatch:
		return http.StatusConflict
	case errs.CodeUnauthorized:
		return http.StatusForbidden
	case errs.CodeMissingParameter:
		return http.StatusBadRequest
	case errs.CodeUnavailable:
		return http.StatusServiceUnavailable
	case errs.CodeCorrupt, errs.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
