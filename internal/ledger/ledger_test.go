package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/models"
)

// memStore is an in-memory Store; WithHoldingLock serializes all callers and
// restores the previous state when fn fails.
type memStore struct {
	mu           sync.Mutex
	nextID       int
	portfolios   map[int]*models.Portfolio
	holdings     map[int]*models.Holding
	transactions map[int]*models.Transaction
}

func newMemStore() *memStore {
	return &memStore{
		portfolios:   map[int]*models.Portfolio{},
		holdings:     map[int]*models.Holding{},
		transactions: map[int]*models.Transaction{},
	}
}

func (m *memStore) id() int {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	cp := *p
	m.portfolios[p.ID] = &cp
	return nil
}

func (m *memStore) GetPortfolio(ctx context.Context, id int) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.portfolios[id]
	if !ok {
		return nil, apperr.NotFound("portfolio", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListPortfolios(ctx context.Context, userID int) ([]*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Portfolio
	for _, p := range m.portfolios {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdatePortfolio(ctx context.Context, p *models.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.portfolios[p.ID]; !ok {
		return apperr.NotFound("portfolio", p.ID)
	}
	cp := *p
	m.portfolios[p.ID] = &cp
	return nil
}

func (m *memStore) DeletePortfolio(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.portfolios[id]; !ok {
		return apperr.NotFound("portfolio", id)
	}
	delete(m.portfolios, id)
	for hid, h := range m.holdings {
		if h.PortfolioID == id {
			delete(m.holdings, hid)
		}
	}
	for tid, t := range m.transactions {
		if t.PortfolioID == id {
			delete(m.transactions, tid)
		}
	}
	return nil
}

func (m *memStore) GetTransaction(ctx context.Context, id int) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getTransaction(id)
}

func (m *memStore) getTransaction(id int) (*models.Transaction, error) {
	t, ok := m.transactions[id]
	if !ok {
		return nil, apperr.NotFound("transaction", id)
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) TransactionExists(ctx context.Context, source, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.Source == source && t.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListHoldings(ctx context.Context, portfolioID int) ([]*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listHoldings(portfolioID), nil
}

func (m *memStore) listHoldings(portfolioID int) []*models.Holding {
	out := []*models.Holding{}
	for _, h := range m.holdings {
		if h.PortfolioID == portfolioID {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func (m *memStore) ListTransactions(ctx context.Context, portfolioID int) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listTransactions(func(t *models.Transaction) bool { return t.PortfolioID == portfolioID }), nil
}

func (m *memStore) listTransactions(keep func(t *models.Transaction) bool) []*models.Transaction {
	out := []*models.Transaction{}
	for _, t := range m.transactions {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ReadSnapshot(ctx context.Context, portfolioID int) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return nil, apperr.NotFound("portfolio", portfolioID)
	}
	cp := *p
	return &Snapshot{
		Portfolio:    &cp,
		Holdings:     m.listHoldings(portfolioID),
		Transactions: m.listTransactions(func(t *models.Transaction) bool { return t.PortfolioID == portfolioID }),
	}, nil
}

func (m *memStore) WithHoldingLock(ctx context.Context, portfolioID int, ticker string, fn func(tx HoldingTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	holdings := make(map[int]*models.Holding, len(m.holdings))
	for k, v := range m.holdings {
		cp := *v
		holdings[k] = &cp
	}
	transactions := make(map[int]*models.Transaction, len(m.transactions))
	for k, v := range m.transactions {
		cp := *v
		transactions[k] = &cp
	}

	if err := fn(memTx{m}); err != nil {
		m.holdings = holdings
		m.transactions = transactions
		return err
	}
	return nil
}

type memTx struct {
	m *memStore
}

func (tx memTx) GetHolding(ctx context.Context, portfolioID int, ticker string) (*models.Holding, error) {
	for _, h := range tx.m.holdings {
		if h.PortfolioID == portfolioID && h.Ticker == ticker {
			cp := *h
			return &cp, nil
		}
	}
	return nil, nil
}

func (tx memTx) CreateHolding(ctx context.Context, h *models.Holding) error {
	h.ID = tx.m.id()
	cp := *h
	tx.m.holdings[h.ID] = &cp
	return nil
}

func (tx memTx) UpdateHolding(ctx context.Context, h *models.Holding) error {
	if _, ok := tx.m.holdings[h.ID]; !ok {
		return errors.New("holding not found")
	}
	cp := *h
	tx.m.holdings[h.ID] = &cp
	return nil
}

func (tx memTx) DeleteHolding(ctx context.Context, id int) error {
	delete(tx.m.holdings, id)
	for _, t := range tx.m.transactions {
		if t.HoldingID != nil && *t.HoldingID == id {
			t.HoldingID = nil
		}
	}
	return nil
}

func (tx memTx) GetTransaction(ctx context.Context, id int) (*models.Transaction, error) {
	return tx.m.getTransaction(id)
}

func (tx memTx) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	t.ID = tx.m.id()
	cp := *t
	if t.HoldingID != nil {
		hid := *t.HoldingID
		cp.HoldingID = &hid
	}
	tx.m.transactions[t.ID] = &cp
	return nil
}

func (tx memTx) DeleteTransaction(ctx context.Context, id int) error {
	if _, ok := tx.m.transactions[id]; !ok {
		return apperr.NotFound("transaction", id)
	}
	delete(tx.m.transactions, id)
	return nil
}

func (tx memTx) ListTickerTransactions(ctx context.Context, portfolioID int, ticker string) ([]*models.Transaction, error) {
	return tx.m.listTransactions(func(t *models.Transaction) bool {
		return t.PortfolioID == portfolioID && t.Ticker == ticker
	}), nil
}

func (tx memTx) UpdateTransactionBooking(ctx context.Context, t *models.Transaction) error {
	stored, ok := tx.m.transactions[t.ID]
	if !ok {
		return apperr.NotFound("transaction", t.ID)
	}
	stored.CostBasis = t.CostBasis
	stored.RealizedPnl = t.RealizedPnl
	return nil
}

func (tx memTx) RelinkTransactions(ctx context.Context, portfolioID int, ticker string, holdingID int) error {
	for _, t := range tx.m.transactions {
		if t.PortfolioID == portfolioID && t.Ticker == ticker && t.HoldingID == nil {
			hid := holdingID
			t.HoldingID = &hid
		}
	}
	return nil
}

type recordedEvent struct {
	kind    string
	txn     *models.Transaction
	holding *models.Holding
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionApplied(ctx context.Context, t *models.Transaction, h *models.Holding) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{models.EventTransactionApplied, t, h})
	return p.err
}

func (p *recordingPublisher) PublishTransactionReversed(ctx context.Context, t *models.Transaction, h *models.Holding) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{models.EventTransactionReversed, t, h})
	return p.err
}

func input(kind, ticker, units, price string) models.TransactionInput {
	return models.TransactionInput{Kind: kind, Ticker: ticker, Units: d(units), Price: d(price)}
}

func newTestService(t *testing.T) (*Service, *memStore, *recordingPublisher, *models.Portfolio) {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	fixed := time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)
	svc := NewService(store, WithPublisher(pub), WithClock(func() time.Time { return fixed }))

	p, err := svc.CreatePortfolio(context.Background(), 1, "Main", "")
	require.NoError(t, err)
	return svc, store, pub, p
}

func TestService_CreatePortfolioValidation(t *testing.T) {
	svc := NewService(newMemStore())

	_, err := svc.CreatePortfolio(context.Background(), 1, "   ", "")
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.CreatePortfolio(context.Background(), 0, "Main", "")
	assert.True(t, apperr.IsValidation(err))
}

func TestService_UpdatePortfolio(t *testing.T) {
	svc, _, _, p := newTestService(t)
	ctx := context.Background()

	name := " Renamed "
	updated, err := svc.UpdatePortfolio(ctx, p.ID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	empty := ""
	_, err = svc.UpdatePortfolio(ctx, p.ID, &empty, nil)
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.UpdatePortfolio(ctx, 999, &name, nil)
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_ApplyTransaction(t *testing.T) {
	svc, _, pub, p := newTestService(t)
	ctx := context.Background()

	txn, h, err := svc.ApplyTransaction(ctx, p.ID, input("BUY", " aapl ", "10", "100"))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", txn.Ticker)
	assert.Equal(t, models.TransactionBuy, txn.Kind)
	assert.Equal(t, "AAPL", txn.AssetName)
	assert.Equal(t, models.DefaultClassification, txn.AssetSector)
	assert.Equal(t, time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC), txn.ExecutedAt)
	require.NotNil(t, txn.HoldingID)
	assert.Equal(t, h.ID, *txn.HoldingID)
	assertHolding(t, h, "10", "100")

	_, h, err = svc.ApplyTransaction(ctx, p.ID, input("buy", "AAPL", "10", "200"))
	require.NoError(t, err)
	assertHolding(t, h, "20", "150")

	require.Len(t, pub.events, 2)
	assert.Equal(t, models.EventTransactionApplied, pub.events[0].kind)

	_, _, err = svc.ApplyTransaction(ctx, 999, input("buy", "AAPL", "1", "1"))
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_ApplyTransactionRejectsBadInput(t *testing.T) {
	svc, store, _, p := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    models.TransactionInput
		field string
	}{
		{"unknown kind", input("hold", "AAPL", "1", "1"), "transaction_type"},
		{"missing ticker", input("buy", "  ", "1", "1"), "asset_ticker"},
		{"long ticker", input("buy", "ABCDEFGHIJK", "1", "1"), "asset_ticker"},
		{"zero units", input("buy", "AAPL", "0", "1"), "units"},
		{"negative price", input("buy", "AAPL", "1", "-1"), "price"},
		{"external id without source", models.TransactionInput{Kind: "buy", Ticker: "AAPL", Units: d("1"), Price: d("1"), ExternalID: "x"}, "source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ApplyTransaction(ctx, p.ID, tt.in)
			require.Error(t, err)
			var verr *apperr.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Empty(t, store.transactions)
}

func TestService_ZeroOutSellAndReversal(t *testing.T) {
	svc, store, pub, p := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ApplyTransaction(ctx, p.ID, input("buy", "AAPL", "10", "100"))
	require.NoError(t, err)
	_, _, err = svc.ApplyTransaction(ctx, p.ID, input("buy", "AAPL", "10", "200"))
	require.NoError(t, err)

	closing, h, err := svc.ApplyTransaction(ctx, p.ID, input("sell", "AAPL", "20", "180"))
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Nil(t, closing.HoldingID)
	assert.True(t, closing.CostBasis.Equal(d("150")))
	assert.True(t, closing.RealizedPnl.Equal(d("600")))
	assert.Empty(t, store.holdings)

	realized, err := svc.TotalRealizedPL(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("600")))

	restored, err := svc.ReverseTransaction(ctx, closing.ID)
	require.NoError(t, err)
	assertHolding(t, restored, "20", "150")

	transactions, err := svc.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	for _, txn := range transactions {
		require.NotNil(t, txn.HoldingID)
		assert.Equal(t, restored.ID, *txn.HoldingID)
	}

	last := pub.events[len(pub.events)-1]
	assert.Equal(t, models.EventTransactionReversed, last.kind)
	assert.Equal(t, closing.ID, last.txn.ID)
}

func TestService_ReverseBuy(t *testing.T) {
	svc, store, _, p := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.ApplyTransaction(ctx, p.ID, input("buy", "MSFT", "10", "100"))
	require.NoError(t, err)
	second, _, err := svc.ApplyTransaction(ctx, p.ID, input("buy", "MSFT", "10", "200"))
	require.NoError(t, err)
	partial, _, err := svc.ApplyTransaction(ctx, p.ID, input("sell", "MSFT", "15", "250"))
	require.NoError(t, err)

	// 5 units remain; removing a 10 unit buy would go negative
	_, err = svc.ReverseTransaction(ctx, second.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Len(t, store.transactions, 3)

	h, err := svc.ReverseTransaction(ctx, partial.ID)
	require.NoError(t, err)
	assertHolding(t, h, "20", "150")

	h, err = svc.ReverseTransaction(ctx, second.ID)
	require.NoError(t, err)
	assertHolding(t, h, "10", "100")

	h, err = svc.ReverseTransaction(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Empty(t, store.holdings)

	_, err = svc.ReverseTransaction(ctx, first.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_ReverseBuyBehindClosingSell(t *testing.T) {
	svc, store, _, p := newTestService(t)
	ctx := context.Background()

	buy, _, err := svc.ApplyTransaction(ctx, p.ID, input("buy", "NVDA", "10", "100"))
	require.NoError(t, err)
	sell, h, err := svc.ApplyTransaction(ctx, p.ID, input("sell", "NVDA", "10", "120"))
	require.NoError(t, err)
	require.Nil(t, h)

	// the sell consumed every unit of the buy
	_, err = svc.ReverseTransaction(ctx, buy.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Len(t, store.transactions, 2)
	assert.Empty(t, store.holdings)

	h, err = svc.ReverseTransaction(ctx, sell.ID)
	require.NoError(t, err)
	assertHolding(t, h, "10", "100")

	h, err = svc.ReverseTransaction(ctx, buy.ID)
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Empty(t, store.holdings)
	assert.Empty(t, store.transactions)
}

func TestService_ReverseEarlierBuyRebooksLaterSell(t *testing.T) {
	svc, store, _, p := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ApplyTransaction(ctx, p.ID, input("buy", "AMD", "10", "100"))
	require.NoError(t, err)
	second, _, err := svc.ApplyTransaction(ctx, p.ID, input("buy", "AMD", "10", "200"))
	require.NoError(t, err)
	sell, _, err := svc.ApplyTransaction(ctx, p.ID, input("sell", "AMD", "5", "180"))
	require.NoError(t, err)
	require.True(t, sell.RealizedPnl.Equal(d("150")))

	h, err := svc.ReverseTransaction(ctx, second.ID)
	require.NoError(t, err)
	assertHolding(t, h, "5", "100")

	rebooked := store.transactions[sell.ID]
	assert.True(t, rebooked.CostBasis.Equal(d("100")))
	assert.True(t, rebooked.RealizedPnl.Equal(d("400")))

	realized, err := svc.TotalRealizedPL(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("400")))
}

func TestService_ReverseBuyIsExact(t *testing.T) {
	svc, _, _, p := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ApplyTransaction(ctx, p.ID, input("buy", "F", "1", "1"))
	require.NoError(t, err)
	free, h, err := svc.ApplyTransaction(ctx, p.ID, input("buy", "F", "2", "0"))
	require.NoError(t, err)
	assertHolding(t, h, "3", "0.3333333333333333")

	h, err = svc.ReverseTransaction(ctx, free.ID)
	require.NoError(t, err)
	assertHolding(t, h, "1", "1")
}

func TestService_OversellLeavesLedgerUntouched(t *testing.T) {
	svc, store, _, p := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ApplyTransaction(ctx, p.ID, input("buy", "TSLA", "2", "100"))
	require.NoError(t, err)

	_, _, err = svc.ApplyTransaction(ctx, p.ID, input("sell", "TSLA", "3", "100"))
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Len(t, store.transactions, 1)

	holdings, err := svc.ListHoldings(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assertHolding(t, holdings[0], "2", "100")
}

func TestService_PublisherFailureDoesNotFailTransaction(t *testing.T) {
	svc, store, pub, p := newTestService(t)
	pub.err = errors.New("broker down")

	_, _, err := svc.ApplyTransaction(context.Background(), p.ID, input("buy", "AAPL", "1", "10"))
	require.NoError(t, err)
	assert.Len(t, store.transactions, 1)
}

func TestService_Totals(t *testing.T) {
	svc, _, _, p := newTestService(t)
	ctx := context.Background()

	in := input("buy", "AAPL", "10", "100")
	in.Fee = d("1.5")
	_, _, err := svc.ApplyTransaction(ctx, p.ID, in)
	require.NoError(t, err)
	in = input("buy", "MSFT", "2", "300")
	in.Fee = d("2")
	_, _, err = svc.ApplyTransaction(ctx, p.ID, in)
	require.NoError(t, err)

	basis, err := svc.TotalCostBasis(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, basis.Equal(d("1600")))

	fees, err := svc.TotalFees(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, fees.Equal(d("3.5")))

	summaries, err := svc.ListPortfolios(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Value.Equal(d("1600")))
}

func TestService_Snapshot(t *testing.T) {
	svc, _, _, p := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ApplyTransaction(ctx, p.ID, input("buy", "AAPL", "10", "100"))
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, snap.Portfolio.ID)
	require.Len(t, snap.Holdings, 1)
	require.Len(t, snap.Transactions, 1)
	require.NotNil(t, snap.Transactions[0].HoldingID)
	assert.Equal(t, snap.Holdings[0].ID, *snap.Transactions[0].HoldingID)

	_, err = svc.Snapshot(ctx, 999)
	assert.True(t, apperr.IsNotFound(err))
}
