package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/models"
)

const maxTickerLength = 10

// normalizeInput validates in and fills defaults for optional fields
func normalizeInput(in models.TransactionInput) (models.TransactionInput, error) {
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	if in.Kind != models.TransactionBuy && in.Kind != models.TransactionSell {
		return in, apperr.Invalid("transaction_type", "must be %q or %q", models.TransactionBuy, models.TransactionSell)
	}

	in.Ticker = models.NormalizeTicker(in.Ticker)
	if in.Ticker == "" {
		return in, apperr.Invalid("asset_ticker", "is required")
	}
	if len(in.Ticker) > maxTickerLength {
		return in, apperr.Invalid("asset_ticker", "must be at most %d characters", maxTickerLength)
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name = in.Ticker
	}
	in.Type = defaultString(in.Type, models.DefaultClassification)
	in.Sector = defaultString(in.Sector, models.DefaultClassification)

	if !in.Units.IsPositive() {
		return in, apperr.Invalid("units", "must be positive")
	}
	if in.Price.IsNegative() {
		return in, apperr.Invalid("price", "must not be negative")
	}
	if in.Fee.IsNegative() {
		return in, apperr.Invalid("fee", "must not be negative")
	}
	if in.ExternalID != "" && in.Source == "" {
		return in, apperr.Invalid("source", "is required with external_id")
	}
	return in, nil
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func sumDecimals[T any](items []T, f func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(f(item))
	}
	return total
}
