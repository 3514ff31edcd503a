package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware(handler.logger), recoveryMiddleware(handler.logger))

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Portfolio ledger
	api.HandleFunc("/portfolios", handler.CreatePortfolio).Methods("POST")
	api.HandleFunc("/users/{userID}/portfolios", handler.ListPortfolios).Methods("GET")
	api.HandleFunc("/portfolios/{id}", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{id}", handler.UpdatePortfolio).Methods("PUT")
	api.HandleFunc("/portfolios/{id}", handler.DeletePortfolio).Methods("DELETE")
	api.HandleFunc("/portfolios/{id}/transactions", handler.ApplyTransaction).Methods("POST")
	api.HandleFunc("/portfolios/{id}/transactions", handler.ListTransactions).Methods("GET")
	api.HandleFunc("/transactions/{id}", handler.ReverseTransaction).Methods("DELETE")

	// Analytics
	api.HandleFunc("/portfolios/{id}/holdings", handler.GetHoldings).Methods("GET")
	api.HandleFunc("/portfolios/{id}/value", handler.GetPortfolioValue).Methods("GET")
	api.HandleFunc("/portfolios/{id}/dividends", handler.GetDividends).Methods("GET")
	api.HandleFunc("/portfolios/{id}/value-over-time", handler.GetValueOverTime).Methods("GET")
	api.HandleFunc("/portfolios/{id}/metrics", handler.GetPortfolioMetrics).Methods("GET")
	api.HandleFunc("/portfolios/{id}/price-matrix", handler.GetPriceMatrix).Methods("GET")
	api.HandleFunc("/portfolios/{id}/report", handler.GetReport).Methods("GET")
	api.HandleFunc("/benchmarks/metrics", handler.GetBenchmarkMetrics).Methods("GET")
	api.HandleFunc("/benchmarks/{ticker}/metrics", handler.GetBenchmarkMetrics).Methods("GET")

	return r
}
