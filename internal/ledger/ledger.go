// Package ledger maintains holdings from buy and sell transactions using
// average-cost accounting.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/logging"
	"github.com/trogers1052/portfolio-service/internal/models"
)

// Service is the position ledger
type Service struct {
	store     Store
	publisher EventPublisher
	logger    *logging.Logger
	now       func() time.Time
}

// Option configures the service
type Option func(*Service)

// WithPublisher sets the publisher notified after each committed change
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for default timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a ledger over store
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logging.NewSilentLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is a consistent read of a portfolio's ledger state
type Snapshot struct {
	Portfolio    *models.Portfolio
	Holdings     []*models.Holding
	Transactions []*models.Transaction
}

// CostBasis is the sum of units times average cost over all holdings
func (s *Snapshot) CostBasis() decimal.Decimal {
	return sumDecimals(s.Holdings, func(h *models.Holding) decimal.Decimal { return h.CostBasis() })
}

// Fees is the sum of fees over all transactions
func (s *Snapshot) Fees() decimal.Decimal {
	return sumDecimals(s.Transactions, func(t *models.Transaction) decimal.Decimal { return t.Fee })
}

// RealizedPnl is the sum of realized P/L over all transactions
func (s *Snapshot) RealizedPnl() decimal.Decimal {
	return sumDecimals(s.Transactions, func(t *models.Transaction) decimal.Decimal { return t.RealizedPnl })
}

// CreatePortfolio creates a portfolio owned by userID
func (s *Service) CreatePortfolio(ctx context.Context, userID int, name, remarks string) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if userID <= 0 {
		return nil, apperr.Invalid("user_id", "must be positive")
	}
	p := &models.Portfolio{
		UserID:    userID,
		Name:      name,
		Remarks:   remarks,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreatePortfolio(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Int("portfolio_id", p.ID).Int("user_id", userID).Msg("portfolio created")
	return p, nil
}

// GetPortfolio returns a portfolio by id
func (s *Service) GetPortfolio(ctx context.Context, id int) (*models.Portfolio, error) {
	return s.store.GetPortfolio(ctx, id)
}

// ListPortfolios returns a user's portfolios with their cost-basis value
func (s *Service) ListPortfolios(ctx context.Context, userID int) ([]*models.PortfolioSummary, error) {
	portfolios, err := s.store.ListPortfolios(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]*models.PortfolioSummary, 0, len(portfolios))
	for _, p := range portfolios {
		holdings, err := s.store.ListHoldings(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		snap := Snapshot{Portfolio: p, Holdings: holdings}
		summaries = append(summaries, &models.PortfolioSummary{Portfolio: *p, Value: snap.CostBasis()})
	}
	return summaries, nil
}

// UpdatePortfolio changes the name and/or remarks; nil leaves a field as is
func (s *Service) UpdatePortfolio(ctx context.Context, id int, name, remarks *string) (*models.Portfolio, error) {
	p, err := s.store.GetPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperr.Invalid("name", "must not be empty")
		}
		p.Name = trimmed
	}
	if remarks != nil {
		p.Remarks = *remarks
	}
	if err := s.store.UpdatePortfolio(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePortfolio removes a portfolio with its holdings and transactions
func (s *Service) DeletePortfolio(ctx context.Context, id int) error {
	if err := s.store.DeletePortfolio(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int("portfolio_id", id).Msg("portfolio deleted")
	return nil
}

// ApplyTransaction records a transaction and updates the holding it affects
func (s *Service) ApplyTransaction(ctx context.Context, portfolioID int, in models.TransactionInput) (*models.Transaction, *models.Holding, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.store.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, nil, err
	}

	executedAt := s.now()
	if in.ExecutedAt != nil && !in.ExecutedAt.IsZero() {
		executedAt = *in.ExecutedAt
	}

	txn := &models.Transaction{
		PortfolioID: portfolioID,
		Kind:        in.Kind,
		AssetName:   in.Name,
		Ticker:      in.Ticker,
		AssetType:   in.Type,
		AssetSector: in.Sector,
		Units:       in.Units,
		Price:       in.Price,
		Fee:         in.Fee,
		Source:      in.Source,
		ExternalID:  in.ExternalID,
		ExecutedAt:  executedAt.UTC(),
	}

	var result *models.Holding
	err = s.store.WithHoldingLock(ctx, portfolioID, txn.Ticker, func(tx HoldingTx) error {
		current, err := tx.GetHolding(ctx, portfolioID, txn.Ticker)
		if err != nil {
			return err
		}

		txn.CostBasis = CostBasisAt(current, txn)
		txn.RealizedPnl = RealizedPnl(txn)

		next, err := ApplyLot(current, txn)
		if err != nil {
			return err
		}

		switch {
		case current == nil:
			if err := tx.CreateHolding(ctx, next); err != nil {
				return err
			}
		case next != nil:
			if err := tx.UpdateHolding(ctx, next); err != nil {
				return err
			}
		}

		if next != nil {
			txn.HoldingID = &next.ID
		} else {
			txn.HoldingID = &current.ID
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		if next == nil {
			if err := tx.DeleteHolding(ctx, current.ID); err != nil {
				return err
			}
			txn.HoldingID = nil
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Int("portfolio_id", portfolioID).
		Int("transaction_id", txn.ID).
		Str("ticker", txn.Ticker).
		Str("kind", txn.Kind).
		Str("units", txn.Units.String()).
		Str("price", txn.Price.String()).
		Bool("holding_closed", result == nil).
		Msg("transaction applied")

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionApplied(ctx, txn, result); err != nil {
			s.logger.Warn().Err(err).Int("transaction_id", txn.ID).Msg("failed to publish transaction applied event")
		}
	}
	return txn, result, nil
}

// ReverseTransaction deletes a transaction and undoes its effect on the
// holding. It returns the holding after reversal, nil if there is none.
func (s *Service) ReverseTransaction(ctx context.Context, transactionID int) (*models.Holding, error) {
	txn, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	var result *models.Holding
	err = s.store.WithHoldingLock(ctx, txn.PortfolioID, txn.Ticker, func(tx HoldingTx) error {
		// Re-read under the lock: a concurrent reversal may have won the race.
		locked, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		txn = locked

		current, err := tx.GetHolding(ctx, txn.PortfolioID, txn.Ticker)
		if err != nil {
			return err
		}
		history, err := tx.ListTickerTransactions(ctx, txn.PortfolioID, txn.Ticker)
		if err != nil {
			return err
		}

		var next *models.Holding
		replayed := len(history) > 0 && history[len(history)-1].ID != txn.ID
		if replayed {
			// Later transactions were booked against this one, so rebuild the
			// holding from what remains.
			remaining := make([]*models.Transaction, 0, len(history))
			for _, t := range history {
				if t.ID != txn.ID {
					remaining = append(remaining, t)
				}
			}
			var rebooked []*models.Transaction
			next, rebooked, err = Replay(remaining)
			if err != nil {
				return apperr.Invalid("units", "cannot reverse transaction %d: later %s transactions depend on it: %v", txn.ID, txn.Ticker, err)
			}
			for _, t := range rebooked {
				if err := tx.UpdateTransactionBooking(ctx, t); err != nil {
					return err
				}
			}
			if next != nil && current != nil {
				next.ID = current.ID
				next.CreatedAt = current.CreatedAt
			}
		} else {
			next, err = ReverseLot(current, txn)
			if err != nil {
				return err
			}
		}

		if err := tx.DeleteTransaction(ctx, txn.ID); err != nil {
			return err
		}

		switch {
		case current == nil && next != nil:
			if err := tx.CreateHolding(ctx, next); err != nil {
				return err
			}
			if err := tx.RelinkTransactions(ctx, txn.PortfolioID, txn.Ticker, next.ID); err != nil {
				return err
			}
		case current != nil && next != nil:
			if err := tx.UpdateHolding(ctx, next); err != nil {
				return err
			}
			if replayed {
				if err := tx.RelinkTransactions(ctx, txn.PortfolioID, txn.Ticker, next.ID); err != nil {
					return err
				}
			}
		case current != nil && next == nil:
			if err := tx.DeleteHolding(ctx, current.ID); err != nil {
				return err
			}
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("portfolio_id", txn.PortfolioID).
		Int("transaction_id", txn.ID).
		Str("ticker", txn.Ticker).
		Str("kind", txn.Kind).
		Bool("holding_present", result != nil).
		Msg("transaction reversed")

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionReversed(ctx, txn, result); err != nil {
			s.logger.Warn().Err(err).Int("transaction_id", txn.ID).Msg("failed to publish transaction reversed event")
		}
	}
	return result, nil
}

// TransactionExists reports whether an externally sourced transaction was
// already recorded
func (s *Service) TransactionExists(ctx context.Context, source, externalID string) (bool, error) {
	return s.store.TransactionExists(ctx, source, externalID)
}

// ListHoldings returns the portfolio's holdings
func (s *Service) ListHoldings(ctx context.Context, portfolioID int) ([]*models.Holding, error) {
	if _, err := s.store.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.store.ListHoldings(ctx, portfolioID)
}

// ListTransactions returns the portfolio's transactions, oldest first
func (s *Service) ListTransactions(ctx context.Context, portfolioID int) ([]*models.Transaction, error) {
	if _, err := s.store.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, portfolioID)
}

// Snapshot reads the portfolio with its holdings and transactions
func (s *Service) Snapshot(ctx context.Context, portfolioID int) (*Snapshot, error) {
	return s.store.ReadSnapshot(ctx, portfolioID)
}

// TotalCostBasis is the sum of units times average cost over all holdings
func (s *Service) TotalCostBasis(ctx context.Context, portfolioID int) (decimal.Decimal, error) {
	snap, err := s.Snapshot(ctx, portfolioID)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.CostBasis(), nil
}

// TotalFees is the sum of fees over all transactions
func (s *Service) TotalFees(ctx context.Context, portfolioID int) (decimal.Decimal, error) {
	snap, err := s.Snapshot(ctx, portfolioID)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Fees(), nil
}

// TotalRealizedPL is the sum of realized P/L over all transactions
func (s *Service) TotalRealizedPL(ctx context.Context, portfolioID int) (decimal.Decimal, error) {
	snap, err := s.Snapshot(ctx, portfolioID)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.RealizedPnl(), nil
}
