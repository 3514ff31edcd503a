package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/logging"
	"github.com/trogers1052/portfolio-service/internal/models"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultExchange  = "US"

	providerName = "eodhd"
)

// flexDecimal accepts JSON numbers, numeric strings and the "NA" placeholder.
type flexDecimal struct {
	decimal.Decimal
	Valid bool
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" || strings.EqualFold(s, "NA") || s == "N/A" {
		*f = flexDecimal{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into decimal: %w", string(data), err)
	}
	*f = flexDecimal{Decimal: d, Valid: true}
	return nil
}

// EODHD is a Provider backed by the EODHD HTTP API
type EODHD struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     *logging.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

// EODHDOption configures the client
type EODHDOption func(*EODHD)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) EODHDOption {
	return func(c *EODHD) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) EODHDOption {
	return func(c *EODHD) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) EODHDOption {
	return func(c *EODHD) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) EODHDOption {
	return func(c *EODHD) {
		c.httpClient.Timeout = timeout
	}
}

// WithExchange sets the exchange suffix added to tickers without one
func WithExchange(exchange string) EODHDOption {
	return func(c *EODHD) {
		c.exchange = exchange
	}
}

// NewEODHD creates a new EODHD client
func NewEODHD(apiKey string, opts ...EODHDOption) *EODHD {
	c := &EODHD{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		exchange: DefaultExchange,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  logging.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// symbol maps a holding ticker to an EODHD symbol: AAPL -> AAPL.US
func (c *EODHD) symbol(ticker string) string {
	ticker = models.NormalizeTicker(ticker)
	if strings.Contains(ticker, ".") || c.exchange == "" {
		return ticker
	}
	return ticker + "." + c.exchange
}

// get performs a rate-limited GET request
func (c *EODHD) get(ctx context.Context, ticker, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &apperr.ProviderError{Provider: providerName, Endpoint: path, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperr.ProviderError{Provider: providerName, Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return apperr.NoData(ticker, endpointName(path))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apperr.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &apperr.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Endpoint: path, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

type realTimeResponse struct {
	Code      string      `json:"code"`
	Timestamp int64       `json:"timestamp"`
	Open      flexDecimal `json:"open"`
	Close     flexDecimal `json:"close"`
}

// GetQuote returns the latest price and the dividends paid over the last year
func (c *EODHD) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	path := "/real-time/" + c.symbol(ticker)

	var resp realTimeResponse
	if err := c.get(ctx, ticker, path, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Close.Valid {
		return nil, apperr.NoData(ticker, "quote")
	}

	now := c.now().UTC()
	asOf := now
	if resp.Timestamp > 0 {
		asOf = time.Unix(resp.Timestamp, 0).UTC()
	}

	annual := decimal.Zero
	events, err := c.dividends(ctx, ticker, now.AddDate(-1, 0, 0))
	switch {
	case err == nil:
		for _, e := range events {
			annual = annual.Add(e.Amount)
		}
	case apperr.IsDataUnavailable(err):
		// no dividends paid
	case ctx.Err() != nil:
		return nil, err
	default:
		// the price is still good; income figures fall back to zero
		c.logger.Warn().Err(err).Str("ticker", ticker).Msg("dividend lookup failed, quoting without dividend rate")
	}

	return &models.Quote{
		Ticker:                     models.NormalizeTicker(ticker),
		CurrentPrice:               resp.Close.Decimal,
		TrailingAnnualDividendRate: annual,
		AsOf:                       asOf,
	}, nil
}

type eodBarResponse struct {
	Date          string      `json:"date"`
	Open          flexDecimal `json:"open"`
	Close         flexDecimal `json:"close"`
	AdjustedClose flexDecimal `json:"adjusted_close"`
}

func (c *EODHD) eod(ctx context.Context, ticker string, from, to time.Time) ([]eodBarResponse, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	params.Set("from", from.Format(time.DateOnly))
	params.Set("to", to.Format(time.DateOnly))

	var bars []eodBarResponse
	if err := c.get(ctx, ticker, "/eod/"+c.symbol(ticker), params, &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// GetDailyHistory returns daily open prices between start and end inclusive
func (c *EODHD) GetDailyHistory(ctx context.Context, ticker string, start, end time.Time) ([]models.PricePoint, error) {
	bars, err := c.eod(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	points := toPoints(bars, func(b eodBarResponse) flexDecimal { return b.Open })
	if len(points) == 0 {
		return nil, apperr.NoData(ticker, "price history")
	}
	return points, nil
}

// GetAdjustedCloseHistory returns daily adjusted closes over a trailing period
func (c *EODHD) GetAdjustedCloseHistory(ctx context.Context, ticker, period string) ([]models.PricePoint, error) {
	end := c.now().UTC()
	start, err := PeriodStart(period, end)
	if err != nil {
		return nil, err
	}
	bars, err := c.eod(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	points := toPoints(bars, func(b eodBarResponse) flexDecimal { return b.AdjustedClose })
	if len(points) == 0 {
		return nil, apperr.NoData(ticker, "adjusted close history")
	}
	return points, nil
}

type dividendResponse struct {
	Date  string      `json:"date"` // ex-dividend date
	Value flexDecimal `json:"value"`
}

func (c *EODHD) dividends(ctx context.Context, ticker string, from time.Time) ([]models.DividendEvent, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("from", from.Format(time.DateOnly))
	}

	var resp []dividendResponse
	if err := c.get(ctx, ticker, "/div/"+c.symbol(ticker), params, &resp); err != nil {
		return nil, err
	}

	events := make([]models.DividendEvent, 0, len(resp))
	for _, d := range resp {
		date, err := time.Parse(time.DateOnly, d.Date)
		if err != nil || !d.Value.Valid {
			continue
		}
		events = append(events, models.DividendEvent{Date: date, Amount: d.Value.Decimal})
	}
	if len(events) == 0 {
		return nil, apperr.NoData(ticker, "dividends")
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events, nil
}

// GetDividendEvents returns the full dividend history
func (c *EODHD) GetDividendEvents(ctx context.Context, ticker string) ([]models.DividendEvent, error) {
	return c.dividends(ctx, ticker, time.Time{})
}

func toPoints(bars []eodBarResponse, price func(eodBarResponse) flexDecimal) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse(time.DateOnly, bar.Date)
		if err != nil {
			continue
		}
		p := price(bar)
		if !p.Valid {
			continue
		}
		points = append(points, models.PricePoint{Date: date, Price: p.Decimal})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

func endpointName(path string) string {
	switch {
	case strings.HasPrefix(path, "/real-time/"):
		return "quote"
	case strings.HasPrefix(path, "/eod/"):
		return "price history"
	case strings.HasPrefix(path, "/div/"):
		return "dividends"
	}
	return "data"
}

var _ Provider = (*EODHD)(nil)
