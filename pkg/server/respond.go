package server

import (
	"encoding/json"
	"net/http"

	stderrors "errors"

	"github.com/auralabs/aura/pkg/errors"
	"github.com/auralabs/aura/pkg/hitl"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError maps pipeline errors to HTTP statuses. Decision refusals
// are conflicts, not server faults.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]any{"error": err.Error()}

	switch {
	case stderrors.Is(err, hitl.ErrNotFound):
		status = http.StatusNotFound
	case stderrors.Is(err, hitl.ErrNotPending), stderrors.Is(err, hitl.ErrExpired):
		status = http.StatusConflict
	default:
		switch errors.GetCode(err) {
		case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
			status = http.StatusNotFound
		case errors.ErrCodeInvalidState, errors.ErrCodeExpired:
			status = http.StatusConflict
		case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPath, errors.ErrCodePathEscape:
			status = http.StatusBadRequest
		case errors.ErrCodePermissionDenied:
			status = http.StatusForbidden
		case errors.ErrCodeTimeout:
			status = http.StatusGatewayTimeout
		}
	}

	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		body["code"] = appErr.Code
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
	}
	respondJSON(w, status, body)
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && err.Error() != "EOF" {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body")
	}
	return nil
}
