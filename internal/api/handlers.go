// Package api exposes the ledger and analytics over HTTP
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/logging"
	"github.com/trogers1052/portfolio-service/internal/models"
)

// Ledger is the portfolio ledger as seen by the handlers
type Ledger interface {
	CreatePortfolio(ctx context.Context, userID int, name, remarks string) (*models.Portfolio, error)
	GetPortfolio(ctx context.Context, id int) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context, userID int) ([]*models.PortfolioSummary, error)
	UpdatePortfolio(ctx context.Context, id int, name, remarks *string) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id int) error
	ApplyTransaction(ctx context.Context, portfolioID int, in models.TransactionInput) (*models.Transaction, *models.Holding, error)
	ReverseTransaction(ctx context.Context, transactionID int) (*models.Holding, error)
	ListTransactions(ctx context.Context, portfolioID int) ([]*models.Transaction, error)
}

// Analytics is the read-only analytics engine as seen by the handlers
type Analytics interface {
	GetHoldingsWithLiveValuation(ctx context.Context, portfolioID int) ([]*models.HoldingValuation, error)
	GetPortfolioValue(ctx context.Context, portfolioID int) (*models.PortfolioValue, error)
	GetDividendsReceived(ctx context.Context, portfolioID int) (map[string]string, error)
	GetValueOverTime(ctx context.Context, portfolioID int) (map[string]decimal.Decimal, error)
	GetPortfolioMetrics(ctx context.Context, portfolioID int) (*models.PortfolioMetrics, error)
	GetBenchmarkMetrics(ctx context.Context, ticker string) (*models.BenchmarkMetrics, error)
	PriceMatrix(ctx context.Context, portfolioID int) (*models.PriceMatrix, error)
	Report(ctx context.Context, portfolioID int) (*models.PortfolioReport, error)
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	ledger    Ledger
	analytics Analytics
	db        Pinger
	logger    *logging.Logger
}

// NewHandler creates a new Handler; db may be nil
func NewHandler(ledger Ledger, analytics Analytics, db Pinger, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewSilentLogger()
	}
	return &Handler{
		ledger:    ledger,
		analytics: analytics,
		db:        db,
		logger:    logger,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Warn().Err(err).Msg("health check: database unreachable")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CreatePortfolio handles POST /portfolios
func (h *Handler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  int    `json:"user_id"`
		Name    string `json:"name"`
		Remarks string `json:"remarks"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.ledger.CreatePortfolio(r.Context(), req.UserID, req.Name, req.Remarks)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// ListPortfolios handles GET /users/{userID}/portfolios
func (h *Handler) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	portfolios, err := h.ledger.ListPortfolios(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, portfolios)
}

// GetPortfolio handles GET /portfolios/{id}
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	h.portfolioView(w, r, func(ctx context.Context, id int) (any, error) {
		return h.ledger.GetPortfolio(ctx, id)
	})
}

// UpdatePortfolio handles PUT /portfolios/{id}
func (h *Handler) UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Name    *string `json:"name"`
		Remarks *string `json:"remarks"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.ledger.UpdatePortfolio(r.Context(), id, req.Name, req.Remarks)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DeletePortfolio handles DELETE /portfolios/{id}
func (h *Handler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.ledger.DeletePortfolio(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyTransaction handles POST /portfolios/{id}/transactions
func (h *Handler) ApplyTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var in models.TransactionInput
	if !h.decode(w, r, &in) {
		return
	}

	txn, holding, err := h.ledger.ApplyTransaction(r.Context(), id, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"transaction": txn,
		"holding":     holding,
	})
}

// ListTransactions handles GET /portfolios/{id}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	h.portfolioView(w, r, func(ctx context.Context, id int) (any, error) {
		return h.ledger.ListTransactions(ctx, id)
	})
}

// ReverseTransaction handles DELETE /transactions/{id}
func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	holding, err := h.ledger.ReverseTransaction(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"holding": holding})
}

// GetHoldings handles GET /portfolios/{id}/holdings
func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	h.portfolioView(w, r, func(ctx context.Context, id int) (any, error) {
		return h.analytics.GetHoldingsWithLiveValuation(ctx, id)
	})
}

// GetPortfolioValue handles GET /portfolios/{id}/value
func (h *Handler) GetPortfolioValue(w http.ResponseWriter, r *http.Request) {
	h.portfolioView(w, r, func(ctx context.Context, id int) (any, error) {
		return h.analytics.GetPortfolioValue(ctx, id)
	})
}

// GetDividends handles GET /portfolios/{id}/dividends
func (h *Handler) GetDividends(w http.ResponseWriter, r *http.Request) {
	h.portfolioView(w, r, func(ctx context.Context, id int) (any, error) {
		return h.analytics.GetDividendsReceived(ctx, id)
	})
}

// GetValueOverTime handles GET /portfolios/{id}/value-over-time
func (h *Handler) GetValueOverTime(w http.ResponseWriter, r *http.Request) {
	h.portfolioView(w, r, func(ctx context.Context, id int) (any, error) {
		return h.analytics.GetValueOverTime(ctx, id)
	})
}

// GetPortfolioMetrics handles GET /portfolios/{id}/metrics
func (h *Handler) GetPortfolioMetrics(w http.ResponseWriter, r *http.Request) {
	h.portfolioView(w, r, func(ctx context.Context, id int) (any, error) {
		return h.analytics.GetPortfolioMetrics(ctx, id)
	})
}

// GetPriceMatrix handles GET /portfolios/{id}/price-matrix
func (h *Handler) GetPriceMatrix(w http.ResponseWriter, r *http.Request) {
	h.portfolioView(w, r, func(ctx context.Context, id int) (any, error) {
		return h.analytics.PriceMatrix(ctx, id)
	})
}

// GetReport handles GET /portfolios/{id}/report
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	h.portfolioView(w, r, func(ctx context.Context, id int) (any, error) {
		return h.analytics.Report(ctx, id)
	})
}

// GetBenchmarkMetrics handles GET /benchmarks/{ticker}/metrics and
// GET /benchmarks/metrics for the configured benchmark
func (h *Handler) GetBenchmarkMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.analytics.GetBenchmarkMetrics(r.Context(), mux.Vars(r)["ticker"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// portfolioView serves a read keyed by the {id} path variable
func (h *Handler) portfolioView(w http.ResponseWriter, r *http.Request, view func(ctx context.Context, id int) (any, error)) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := view(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		h.respondError(w, r, apperr.Invalid(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
