package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/warp/time-tracking/tracking"
)

// writeServiceError maps a domain error onto a status code and body.
// Unexpected errors are logged and reported as 500 without details.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		quota    *tracking.QuotaExceededError
		overlap  *tracking.EventConflictError
		invalid  *tracking.ValidationError
		notFound *tracking.NotFoundError
	)

	switch {
	case errors.As(err, &quota):
		remaining := quota.Remaining
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:         quota.Error(),
			Code:          "quota_exceeded",
			RemainingDays: &remaining,
		})

	case errors.As(err, &overlap):
		resp := ErrorResponse{Error: "events intersect with the vacation", Code: "events_overlap"}
		base := baseURL(r)
		for _, id := range overlap.EventIDs {
			resp.EventIDs = append(resp.EventIDs, string(id))
			resp.EventsURLs = append(resp.EventsURLs, eventURL(base, id))
		}
		writeJSON(w, http.StatusNotAcceptable, resp)

	case errors.As(err, &invalid):
		resp := ErrorResponse{Error: invalid.Message, Code: "validation"}
		if invalid.Field != "" {
			resp.Details = map[string]string{"field": invalid.Field}
		}
		writeJSON(w, http.StatusBadRequest, resp)

	case tracking.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation", err)

	case tracking.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", err)

	case errors.Is(err, tracking.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err)

	case tracking.IsForbidden(err):
		writeError(w, http.StatusForbidden, "forbidden", err)

	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: notFound.Error(), Code: "not_found"})

	case tracking.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err)

	default:
		h.requestLog(r).WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Debug("failed to write response body")
	}
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}
