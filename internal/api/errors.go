package api

import (
	"errors"
	"net/http"

	"github.com/trogers1052/portfolio-service/internal/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// insufficientDataResponse is a successful answer that carries no result
type insufficientDataResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// respondError maps the apperr taxonomy onto HTTP responses
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *apperr.ValidationError
	switch {
	case errors.Is(err, apperr.ErrInsufficientData):
		respondJSON(w, http.StatusOK, insufficientDataResponse{
			Status:  "insufficient_data",
			Message: "not enough market data to compute this result",
		})
	case apperr.IsNotFound(err):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: validation.Field})
	case apperr.IsProviderError(err):
		h.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("market data provider unavailable")
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "market data provider unavailable"})
	default:
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
