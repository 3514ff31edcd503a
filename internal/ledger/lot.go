package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/models"
)

// ApplyLot returns the holding that results from applying txn to h.
// h is nil when the portfolio has no holding for the ticker; a nil result
// means the holding is closed out and must be deleted. Inputs are not mutated.
func ApplyLot(h *models.Holding, txn *models.Transaction) (*models.Holding, error) {
	switch txn.Kind {
	case models.TransactionBuy:
		if h == nil {
			return newHolding(txn, txn.Price), nil
		}
		next := *h
		next.Units = h.Units.Add(txn.Units)
		next.AverageCost = h.AverageCost.Mul(h.Units).
			Add(txn.Units.Mul(txn.Price)).
			Div(next.Units)
		return &next, nil

	case models.TransactionSell:
		if h == nil {
			return nil, apperr.Invalid("units", "cannot sell %s: no units of %s held", txn.Units, txn.Ticker)
		}
		remaining := h.Units.Sub(txn.Units)
		if remaining.IsNegative() {
			return nil, apperr.Invalid("units", "cannot sell %s of %s: only %s held", txn.Units, txn.Ticker, h.Units)
		}
		if remaining.IsZero() {
			return nil, nil
		}
		next := *h
		next.Units = remaining
		return &next, nil
	}
	return nil, apperr.Invalid("transaction_type", "must be %q or %q, got %q", models.TransactionBuy, models.TransactionSell, txn.Kind)
}

// ReverseLot returns the holding that results from removing txn from h,
// where txn is the last transaction applied to h.
//
// Removing a buy restores the average cost recorded on it when it was
// applied; a missing holding is left missing. Removing a sell adds its units
// back at the cost basis recorded when it was applied, recreating the
// holding if the sell had closed it out. Transactions applied before others
// must be removed with Replay instead.
func ReverseLot(h *models.Holding, txn *models.Transaction) (*models.Holding, error) {
	switch txn.Kind {
	case models.TransactionBuy:
		if h == nil {
			return nil, nil
		}
		remaining := h.Units.Sub(txn.Units)
		if remaining.IsNegative() {
			return nil, apperr.Invalid("units", "cannot remove buy of %s %s: only %s held, reverse later sells first", txn.Units, txn.Ticker, h.Units)
		}
		if remaining.IsZero() {
			return nil, nil
		}
		next := *h
		next.Units = remaining
		next.AverageCost = txn.CostBasis
		return &next, nil

	case models.TransactionSell:
		if h == nil {
			return newHolding(txn, txn.CostBasis), nil
		}
		next := *h
		next.Units = h.Units.Add(txn.Units)
		return &next, nil
	}
	return nil, apperr.Invalid("transaction_type", "must be %q or %q, got %q", models.TransactionBuy, models.TransactionSell, txn.Kind)
}

// Replay applies txns in order to an empty holding and returns the result
// together with the transactions whose cost basis or realized P/L changed.
// The returned transactions are copies; txns is not mutated.
func Replay(txns []*models.Transaction) (*models.Holding, []*models.Transaction, error) {
	var h *models.Holding
	var rebooked []*models.Transaction
	for _, txn := range txns {
		booked := *txn
		booked.CostBasis = CostBasisAt(h, txn)
		booked.RealizedPnl = RealizedPnl(&booked)

		next, err := ApplyLot(h, &booked)
		if err != nil {
			return nil, nil, err
		}
		if !booked.CostBasis.Equal(txn.CostBasis) || !booked.RealizedPnl.Equal(txn.RealizedPnl) {
			rebooked = append(rebooked, &booked)
		}
		h = next
	}
	return h, rebooked, nil
}

// CostBasisAt is the per-unit cost basis txn is booked against when applied
// to h: the holding's average cost, or the buy price for a new holding.
func CostBasisAt(h *models.Holding, txn *models.Transaction) decimal.Decimal {
	if h == nil {
		if txn.Kind == models.TransactionBuy {
			return txn.Price
		}
		return decimal.Zero
	}
	return h.AverageCost
}

// RealizedPnl is (price - cost basis) * units for a sell and zero for a buy
func RealizedPnl(txn *models.Transaction) decimal.Decimal {
	if !txn.IsSell() {
		return decimal.Zero
	}
	return txn.Price.Sub(txn.CostBasis).Mul(txn.Units)
}

func newHolding(txn *models.Transaction, averageCost decimal.Decimal) *models.Holding {
	return &models.Holding{
		PortfolioID: txn.PortfolioID,
		Ticker:      txn.Ticker,
		Name:        txn.AssetName,
		Type:        txn.AssetType,
		Sector:      txn.AssetSector,
		Units:       txn.Units,
		AverageCost: averageCost,
	}
}
