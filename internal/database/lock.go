package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trogers1052/portfolio-service/internal/ledger"
	"github.com/trogers1052/portfolio-service/internal/models"
)

// WithHoldingLock runs fn inside a transaction holding an advisory lock on
// (portfolioID, ticker). Concurrent mutations of the same holding queue on
// the lock; different tickers do not contend.
func (db *DB) WithHoldingLock(ctx context.Context, portfolioID int, ticker string, fn func(tx ledger.HoldingTx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, hashtext($2))`, portfolioID, ticker); err != nil {
		return fmt.Errorf("failed to acquire holding lock: %w", err)
	}

	if err := fn(&holdingTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type holdingTx struct {
	tx *sql.Tx
}

func (h *holdingTx) GetHolding(ctx context.Context, portfolioID int, ticker string) (*models.Holding, error) {
	return getHoldingForUpdate(ctx, h.tx, portfolioID, ticker)
}

func (h *holdingTx) CreateHolding(ctx context.Context, holding *models.Holding) error {
	return createHolding(ctx, h.tx, holding)
}

func (h *holdingTx) UpdateHolding(ctx context.Context, holding *models.Holding) error {
	return updateHolding(ctx, h.tx, holding)
}

func (h *holdingTx) DeleteHolding(ctx context.Context, id int) error {
	return deleteHolding(ctx, h.tx, id)
}

func (h *holdingTx) GetTransaction(ctx context.Context, id int) (*models.Transaction, error) {
	return getTransaction(ctx, h.tx, id, true)
}

func (h *holdingTx) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return createTransaction(ctx, h.tx, t)
}

func (h *holdingTx) DeleteTransaction(ctx context.Context, id int) error {
	return deleteTransaction(ctx, h.tx, id)
}

func (h *holdingTx) RelinkTransactions(ctx context.Context, portfolioID int, ticker string, holdingID int) error {
	return relinkTransactions(ctx, h.tx, portfolioID, ticker, holdingID)
}

func (h *holdingTx) ListTickerTransactions(ctx context.Context, portfolioID int, ticker string) ([]*models.Transaction, error) {
	return listTickerTransactions(ctx, h.tx, portfolioID, ticker)
}

func (h *holdingTx) UpdateTransactionBooking(ctx context.Context, t *models.Transaction) error {
	return updateTransactionBooking(ctx, h.tx, t)
}

var _ ledger.Store = (*DB)(nil)

// ReadSnapshot reads a portfolio with its holdings and transactions inside
// one read-only repeatable-read transaction, so all three reflect the same
// committed state.
func (db *DB) ReadSnapshot(ctx context.Context, portfolioID int) (*ledger.Snapshot, error) {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	p, err := getPortfolio(ctx, tx, portfolioID)
	if err != nil {
		return nil, err
	}
	holdings, err := listHoldings(ctx, tx, portfolioID)
	if err != nil {
		return nil, err
	}
	transactions, err := listTransactions(ctx, tx, portfolioID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return &ledger.Snapshot{Portfolio: p, Holdings: holdings, Transactions: transactions}, nil
}
