package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/models"
)

const transactionColumns = `
	id, portfolio_id, holding_id, kind, asset_name, ticker, asset_type, asset_sector,
	units, price, fee, cost_basis, realized_pnl, source, external_id, executed_at, created_at`

// GetTransaction retrieves a transaction by ID
func (db *DB) GetTransaction(ctx context.Context, id int) (*models.Transaction, error) {
	return getTransaction(ctx, db.conn, id, false)
}

// ListTransactions retrieves a portfolio's transactions, oldest first
func (db *DB) ListTransactions(ctx context.Context, portfolioID int) ([]*models.Transaction, error) {
	return listTransactions(ctx, db.conn, portfolioID)
}

func listTransactions(ctx context.Context, q querier, portfolioID int) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY executed_at ASC, id ASC
	`
	rows, err := q.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}

// TransactionExists checks if a transaction with the given source and external id was recorded
func (db *DB) TransactionExists(ctx context.Context, source, externalID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE source = $1 AND external_id = $2)`
	var exists bool
	if err := db.conn.QueryRowContext(ctx, query, source, externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check transaction existence: %w", err)
	}
	return exists, nil
}

func getTransaction(ctx context.Context, q querier, id int, forUpdate bool) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTransaction(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func createTransaction(ctx context.Context, q querier, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (
			portfolio_id, holding_id, kind, asset_name, ticker, asset_type, asset_sector,
			units, price, fee, cost_basis, realized_pnl, source, external_id,
			executed_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			NULLIF($13, ''), NULLIF($14, ''), $15, $16
		)
		RETURNING id
	`
	now := time.Now().UTC()
	executedAt := t.ExecutedAt
	if executedAt.IsZero() {
		executedAt = now
	}

	err := q.QueryRowContext(ctx, query,
		t.PortfolioID, t.HoldingID, t.Kind, t.AssetName, t.Ticker, t.AssetType, t.AssetSector,
		t.Units, t.Price, t.Fee, t.CostBasis, t.RealizedPnl, t.Source, t.ExternalID,
		executedAt, now,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	t.ExecutedAt = executedAt
	t.CreatedAt = now
	return nil
}

func deleteTransaction(ctx context.Context, q querier, id int) error {
	result, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperr.NotFound("transaction", id)
	}
	return nil
}

func relinkTransactions(ctx context.Context, q querier, portfolioID int, ticker string, holdingID int) error {
	query := `
		UPDATE transactions SET holding_id = $3
		WHERE portfolio_id = $1 AND ticker = $2 AND holding_id IS NULL
	`
	if _, err := q.ExecContext(ctx, query, portfolioID, ticker, holdingID); err != nil {
		return fmt.Errorf("failed to relink transactions: %w", err)
	}
	return nil
}

// listTickerTransactions returns a ticker's transactions in the order they
// were applied to the holding.
func listTickerTransactions(ctx context.Context, q querier, portfolioID int, ticker string) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE portfolio_id = $1 AND ticker = $2
		ORDER BY id ASC
	`
	rows, err := q.QueryContext(ctx, query, portfolioID, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticker transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticker transactions: %w", err)
	}
	return transactions, nil
}

func updateTransactionBooking(ctx context.Context, q querier, t *models.Transaction) error {
	query := `UPDATE transactions SET cost_basis = $2, realized_pnl = $3 WHERE id = $1`
	result, err := q.ExecContext(ctx, query, t.ID, t.CostBasis, t.RealizedPnl)
	if err != nil {
		return fmt.Errorf("failed to update transaction booking: %w", err)
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return apperr.NotFound("transaction", t.ID)
	}
	return nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var holdingID sql.NullInt64
	var source, externalID sql.NullString

	err := row.Scan(
		&t.ID, &t.PortfolioID, &holdingID, &t.Kind, &t.AssetName, &t.Ticker, &t.AssetType, &t.AssetSector,
		&t.Units, &t.Price, &t.Fee, &t.CostBasis, &t.RealizedPnl, &source, &externalID,
		&t.ExecutedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if holdingID.Valid {
		id := int(holdingID.Int64)
		t.HoldingID = &id
	}
	if source.Valid {
		t.Source = source.String
	}
	if externalID.Valid {
		t.ExternalID = externalID.String
	}
	t.ExecutedAt = t.ExecutedAt.UTC()
	return &t, nil
}
