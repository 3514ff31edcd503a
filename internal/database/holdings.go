package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-service/internal/models"
)

const holdingColumns = `id, portfolio_id, ticker, name, type, sector, units, average_cost, created_at, updated_at`

// ListHoldings retrieves all holdings of a portfolio ordered by ticker
func (db *DB) ListHoldings(ctx context.Context, portfolioID int) ([]*models.Holding, error) {
	return listHoldings(ctx, db.conn, portfolioID)
}

func listHoldings(ctx context.Context, q querier, portfolioID int) ([]*models.Holding, error) {
	query := `SELECT ` + holdingColumns + `
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY ticker ASC
	`
	rows, err := q.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []*models.Holding{}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}
	return holdings, nil
}

// getHoldingForUpdate locks and returns the holding row, nil if absent
func getHoldingForUpdate(ctx context.Context, q querier, portfolioID int, ticker string) (*models.Holding, error) {
	query := `SELECT ` + holdingColumns + `
		FROM holdings
		WHERE portfolio_id = $1 AND ticker = $2
		FOR UPDATE
	`
	h, err := scanHolding(q.QueryRowContext(ctx, query, portfolioID, ticker))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return h, nil
}

func createHolding(ctx context.Context, q querier, h *models.Holding) error {
	query := `
		INSERT INTO holdings (portfolio_id, ticker, name, type, sector, units, average_cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
	`
	now := time.Now().UTC()
	err := q.QueryRowContext(ctx, query,
		h.PortfolioID, h.Ticker, h.Name, h.Type, h.Sector, h.Units, h.AverageCost, now,
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}
	h.CreatedAt = now
	h.UpdatedAt = now
	return nil
}

func updateHolding(ctx context.Context, q querier, h *models.Holding) error {
	query := `
		UPDATE holdings SET units = $2, average_cost = $3, updated_at = $4
		WHERE id = $1
	`
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, query, h.ID, h.Units, h.AverageCost, now)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("holding not found: %d", h.ID)
	}
	h.UpdatedAt = now
	return nil
}

// deleteHolding removes the holding; transactions.holding_id is set null by the foreign key
func deleteHolding(ctx context.Context, q querier, id int) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM holdings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHolding(row rowScanner) (*models.Holding, error) {
	var h models.Holding
	err := row.Scan(
		&h.ID, &h.PortfolioID, &h.Ticker, &h.Name, &h.Type, &h.Sector,
		&h.Units, &h.AverageCost, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
