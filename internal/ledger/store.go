package ledger

import (
	"context"

	"github.com/trogers1052/portfolio-service/internal/models"
)

// Store persists portfolios, holdings and transactions.
// Lookups of missing rows return an apperr.NotFoundError.
type Store interface {
	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, id int) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context, userID int) ([]*models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, p *models.Portfolio) error
	DeletePortfolio(ctx context.Context, id int) error

	GetTransaction(ctx context.Context, id int) (*models.Transaction, error)
	TransactionExists(ctx context.Context, source, externalID string) (bool, error)
	ListHoldings(ctx context.Context, portfolioID int) ([]*models.Holding, error)
	ListTransactions(ctx context.Context, portfolioID int) ([]*models.Transaction, error)
	// ReadSnapshot reads the portfolio, its holdings and its transactions
	// from a single point-in-time view of the store.
	ReadSnapshot(ctx context.Context, portfolioID int) (*Snapshot, error)

	// WithHoldingLock runs fn in one storage transaction that excludes every
	// other WithHoldingLock call for the same (portfolio, ticker). The work is
	// committed only if fn returns nil.
	WithHoldingLock(ctx context.Context, portfolioID int, ticker string, fn func(tx HoldingTx) error) error
}

// HoldingTx is the read-modify-write view of one (portfolio, ticker) pair
type HoldingTx interface {
	// GetHolding returns nil, nil when the portfolio holds no such ticker
	GetHolding(ctx context.Context, portfolioID int, ticker string) (*models.Holding, error)
	CreateHolding(ctx context.Context, h *models.Holding) error
	UpdateHolding(ctx context.Context, h *models.Holding) error
	// DeleteHolding clears holding_id on every transaction that referenced it
	DeleteHolding(ctx context.Context, id int) error

	GetTransaction(ctx context.Context, id int) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	DeleteTransaction(ctx context.Context, id int) error
	// ListTickerTransactions returns the ticker's transactions in the order
	// they were applied
	ListTickerTransactions(ctx context.Context, portfolioID int, ticker string) ([]*models.Transaction, error)
	// UpdateTransactionBooking rewrites a transaction's cost basis and realized P/L
	UpdateTransactionBooking(ctx context.Context, t *models.Transaction) error
	// RelinkTransactions points orphaned transactions of ticker at holdingID
	RelinkTransactions(ctx context.Context, portfolioID int, ticker string, holdingID int) error
}

// EventPublisher is notified after a ledger change commits
type EventPublisher interface {
	PublishTransactionApplied(ctx context.Context, t *models.Transaction, h *models.Holding) error
	PublishTransactionReversed(ctx context.Context, t *models.Transaction, h *models.Holding) error
}
