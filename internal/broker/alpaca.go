package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/httpclient"
)

const (
	DefaultTradingURL = "https://paper-api.alpaca.markets"
	DefaultDataURL    = "https://data.alpaca.markets"
)

// AlpacaOptions configures the Alpaca REST client
type AlpacaOptions struct {
	APIKey         string
	SecretKey      string
	TradingURL     string
	DataURL        string
	Feed           string // iex or sip
	RequestsPerSec int
	Timeout        time.Duration
}

// AlpacaClient talks to the Alpaca trading and market data REST APIs
type AlpacaClient struct {
	opts   AlpacaOptions
	http   *httpclient.Client
	logger zerolog.Logger
}

// NewAlpacaClient creates a new Alpaca client
func NewAlpacaClient(opts AlpacaOptions, logger zerolog.Logger) *AlpacaClient {
	if opts.TradingURL == "" {
		opts.TradingURL = DefaultTradingURL
	}
	if opts.DataURL == "" {
		opts.DataURL = DefaultDataURL
	}
	if opts.Feed == "" {
		opts.Feed = "iex"
	}
	return &AlpacaClient{
		opts: opts,
		http: httpclient.New(httpclient.Options{
			Timeout:        opts.Timeout,
			RequestsPerSec: opts.RequestsPerSec,
		}),
		logger: logger.With().Str("component", "alpaca").Logger(),
	}
}

func (c *AlpacaClient) headers() map[string]string {
	return map[string]string{
		"APCA-API-KEY-ID":     c.opts.APIKey,
		"APCA-API-SECRET-KEY": c.opts.SecretKey,
		"Accept":              "application/json",
	}
}

func (c *AlpacaClient) trading(ctx context.Context, method, path string, in, out interface{}) error {
	return c.http.DoJSON(ctx, method, c.opts.TradingURL+path, c.headers(), in, out)
}

func (c *AlpacaClient) data(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.opts.DataURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.http.DoJSON(ctx, http.MethodGet, u, c.headers(), nil, out)
}

// Alpaca encodes most numbers as strings
type num string

func (n num) float() float64 {
	f, _ := strconv.ParseFloat(string(n), 64)
	return f
}

type alpacaAccount struct {
	Equity         num `json:"equity"`
	Cash           num `json:"cash"`
	BuyingPower    num `json:"buying_power"`
	PortfolioValue num `json:"portfolio_value"`
}

// GetAccount fetches account balances
func (c *AlpacaClient) GetAccount(ctx context.Context) (*Account, error) {
	var a alpacaAccount
	if err := c.trading(ctx, http.MethodGet, "/v2/account", nil, &a); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &Account{
		Equity:         a.Equity.float(),
		Cash:           a.Cash.float(),
		BuyingPower:    a.BuyingPower.float(),
		PortfolioValue: a.PortfolioValue.float(),
	}, nil
}

type alpacaPosition struct {
	Symbol         string `json:"symbol"`
	AssetClass     string `json:"asset_class"`
	Qty            num    `json:"qty"`
	AvgEntryPrice  num    `json:"avg_entry_price"`
	CurrentPrice   num    `json:"current_price"`
	MarketValue    num    `json:"market_value"`
	CostBasis      num    `json:"cost_basis"`
	UnrealizedPL   num    `json:"unrealized_pl"`
	UnrealizedPLPC num    `json:"unrealized_plpc"`
	ChangeToday    num    `json:"change_today"`
}

func (p alpacaPosition) toPosition() Position {
	return Position{
		Symbol:              p.Symbol,
		AssetClass:          AssetClass(p.AssetClass),
		Quantity:            p.Qty.float(),
		AvgEntryPrice:       p.AvgEntryPrice.float(),
		CurrentPrice:        p.CurrentPrice.float(),
		MarketValue:         p.MarketValue.float(),
		CostBasis:           p.CostBasis.float(),
		UnrealizedPL:        p.UnrealizedPL.float(),
		UnrealizedPLPercent: p.UnrealizedPLPC.float() * 100,
		ChangeTodayPercent:  p.ChangeToday.float() * 100,
	}
}

// GetPositions lists open positions
func (c *AlpacaClient) GetPositions(ctx context.Context) ([]Position, error) {
	var raw []alpacaPosition
	if err := c.trading(ctx, http.MethodGet, "/v2/positions", nil, &raw); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	positions := make([]Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, p.toPosition())
	}
	return positions, nil
}

// GetPosition returns the position for symbol, or nil when none is held
func (c *AlpacaClient) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	var raw alpacaPosition
	err := c.trading(ctx, http.MethodGet, "/v2/positions/"+url.PathEscape(symbol), nil, &raw)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get position %s: %w", symbol, err)
	}
	p := raw.toPosition()
	return &p, nil
}

type alpacaOrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	LimitPrice    string `json:"limit_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type alpacaOrder struct {
	ID             string    `json:"id"`
	ClientOrderID  string    `json:"client_order_id"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Status         string    `json:"status"`
	Qty            num       `json:"qty"`
	FilledQty      num       `json:"filled_qty"`
	FilledAvgPrice num       `json:"filled_avg_price"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// PlaceOrder submits an order
func (c *AlpacaClient) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrOrderRejected)
	}
	body := alpacaOrderRequest{
		Symbol:        req.Symbol,
		Qty:           strconv.FormatFloat(req.Quantity, 'f', -1, 64),
		Side:          string(req.Side),
		Type:          string(req.Type),
		TimeInForce:   req.TimeInForce,
		ClientOrderID: req.ClientOrderID,
	}
	if body.Type == "" {
		body.Type = string(OrderTypeMarket)
	}
	if body.TimeInForce == "" {
		body.TimeInForce = "day"
	}
	if req.Type == OrderTypeLimit && req.LimitPrice > 0 {
		body.LimitPrice = strconv.FormatFloat(req.LimitPrice, 'f', 2, 64)
	}

	var o alpacaOrder
	if err := c.trading(ctx, http.MethodPost, "/v2/orders", body, &o); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %s", ErrOrderRejected, statusErr.Body)
		}
		return nil, fmt.Errorf("place order %s: %w", req.Symbol, err)
	}

	c.logger.Info().
		Str("symbol", o.Symbol).
		Str("side", o.Side).
		Str("order_id", o.ID).
		Str("status", o.Status).
		Msg("Order submitted")

	return &OrderResult{
		ID:             o.ID,
		ClientOrderID:  o.ClientOrderID,
		Symbol:         o.Symbol,
		Side:           OrderSide(o.Side),
		Status:         o.Status,
		Quantity:       o.Qty.float(),
		FilledQuantity: o.FilledQty.float(),
		FilledAvgPrice: o.FilledAvgPrice.float(),
		SubmittedAt:    o.SubmittedAt,
	}, nil
}

// ClosePosition liquidates the position in symbol
func (c *AlpacaClient) ClosePosition(ctx context.Context, symbol string) (bool, error) {
	if err := c.trading(ctx, http.MethodDelete, "/v2/positions/"+url.PathEscape(symbol), nil, nil); err != nil {
		return false, fmt.Errorf("close position %s: %w", symbol, err)
	}
	return true, nil
}

type alpacaBar struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
	V float64   `json:"v"`
}

// GetBars returns up to limit bars, oldest first
func (c *AlpacaClient) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	if timeframe == "" {
		timeframe = "1Day"
	}
	q := url.Values{}
	q.Set("timeframe", timeframe)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("feed", c.opts.Feed)
	q.Set("adjustment", "split")
	q.Set("start", time.Now().Add(-lookback(timeframe, limit)).UTC().Format(time.RFC3339))

	var bars []Bar
	pageToken := ""
	for {
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}
		var resp struct {
			Bars          []alpacaBar `json:"bars"`
			NextPageToken string      `json:"next_page_token"`
		}
		if err := c.data(ctx, "/v2/stocks/"+url.PathEscape(symbol)+"/bars", q, &resp); err != nil {
			return nil, fmt.Errorf("get bars %s: %w", symbol, err)
		}
		for _, b := range resp.Bars {
			bars = append(bars, Bar{Timestamp: b.T, Open: b.O, High: b.H, Low: b.L, Close: b.C, Volume: b.V})
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMarketData, symbol)
	}
	return bars, nil
}

// lookback returns a calendar window generous enough to hold limit bars
func lookback(timeframe string, limit int) time.Duration {
	switch {
	case strings.HasSuffix(timeframe, "Min"):
		n, _ := strconv.Atoi(strings.TrimSuffix(timeframe, "Min"))
		if n == 0 {
			n = 1
		}
		// markets trade ~6.5h a day; pad for weekends
		return time.Duration(limit*n)*time.Minute*4 + 72*time.Hour
	case strings.HasSuffix(timeframe, "Hour"):
		return time.Duration(limit)*time.Hour*4 + 72*time.Hour
	default:
		return time.Duration(limit) * 24 * time.Hour * 3 / 2
	}
}

// GetQuote returns the latest quote and trade price
func (c *AlpacaClient) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	q := url.Values{"feed": {c.opts.Feed}}
	var quoteResp struct {
		Quote struct {
			BP float64   `json:"bp"`
			AP float64   `json:"ap"`
			T  time.Time `json:"t"`
		} `json:"quote"`
	}
	if err := c.data(ctx, "/v2/stocks/"+url.PathEscape(symbol)+"/quotes/latest", q, &quoteResp); err != nil {
		return nil, fmt.Errorf("get quote %s: %w", symbol, err)
	}
	quote := &Quote{
		Symbol:    symbol,
		Bid:       quoteResp.Quote.BP,
		Ask:       quoteResp.Quote.AP,
		Timestamp: quoteResp.Quote.T,
	}

	var tradeResp struct {
		Trade struct {
			P float64 `json:"p"`
		} `json:"trade"`
	}
	if err := c.data(ctx, "/v2/stocks/"+url.PathEscape(symbol)+"/trades/latest", q, &tradeResp); err != nil {
		c.logger.Debug().Err(err).Str("symbol", symbol).Msg("Latest trade unavailable, using quote mid")
	} else {
		quote.Last = tradeResp.Trade.P
	}

	if quote.Price() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMarketData, symbol)
	}
	return quote, nil
}

type alpacaContract struct {
	Symbol         string `json:"symbol"`
	ExpirationDate string `json:"expiration_date"`
	StrikePrice    num    `json:"strike_price"`
	Type           string `json:"type"`
}

// GetOptionsChain groups listed contracts by expiration
func (c *AlpacaClient) GetOptionsChain(ctx context.Context, symbol string) (*OptionsChain, error) {
	now := time.Now()
	q := url.Values{}
	q.Set("underlying_symbols", symbol)
	q.Set("expiration_date_gte", now.Format("2006-01-02"))
	q.Set("expiration_date_lte", now.AddDate(0, 0, 90).Format("2006-01-02"))
	q.Set("limit", "1000")

	strikesByDate := make(map[string]map[float64]struct{})
	pageToken := ""
	for {
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}
		var resp struct {
			Contracts     []alpacaContract `json:"option_contracts"`
			NextPageToken string           `json:"next_page_token"`
		}
		if err := c.trading(ctx, http.MethodGet, "/v2/options/contracts?"+q.Encode(), nil, &resp); err != nil {
			return nil, fmt.Errorf("get options chain %s: %w", symbol, err)
		}
		for _, ct := range resp.Contracts {
			if strikesByDate[ct.ExpirationDate] == nil {
				strikesByDate[ct.ExpirationDate] = make(map[float64]struct{})
			}
			strikesByDate[ct.ExpirationDate][ct.StrikePrice.float()] = struct{}{}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	chain := &OptionsChain{Underlying: symbol}
	for date, set := range strikesByDate {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		strikes := make([]float64, 0, len(set))
		for s := range set {
			strikes = append(strikes, s)
		}
		sort.Float64s(strikes)
		chain.Expirations = append(chain.Expirations, Expiration{Date: d, Strikes: strikes})
	}
	sort.Slice(chain.Expirations, func(i, j int) bool {
		return chain.Expirations[i].Date.Before(chain.Expirations[j].Date)
	})
	return chain, nil
}

// GetOptionQuote returns the latest bid/ask for an OCC option symbol
func (c *AlpacaClient) GetOptionQuote(ctx context.Context, optionSymbol string) (*OptionQuote, error) {
	var resp struct {
		Quotes map[string]struct {
			BP float64 `json:"bp"`
			AP float64 `json:"ap"`
		} `json:"quotes"`
	}
	q := url.Values{"symbols": {optionSymbol}}
	if err := c.data(ctx, "/v1beta1/options/quotes/latest", q, &resp); err != nil {
		return nil, fmt.Errorf("get option quote %s: %w", optionSymbol, err)
	}
	raw, ok := resp.Quotes[optionSymbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMarketData, optionSymbol)
	}
	return &OptionQuote{Symbol: optionSymbol, Bid: raw.BP, Ask: raw.AP}, nil
}

// GetNews returns recent headlines for symbol
func (c *AlpacaClient) GetNews(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	var resp struct {
		News []struct {
			ID        int64     `json:"id"`
			Headline  string    `json:"headline"`
			Summary   string    `json:"summary"`
			Source    string    `json:"source"`
			Symbols   []string  `json:"symbols"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"news"`
	}
	q := url.Values{"symbols": {symbol}, "limit": {strconv.Itoa(limit)}}
	if err := c.data(ctx, "/v1beta1/news", q, &resp); err != nil {
		return nil, fmt.Errorf("get news %s: %w", symbol, err)
	}
	items := make([]NewsItem, 0, len(resp.News))
	for _, n := range resp.News {
		items = append(items, NewsItem{
			ID:        strconv.FormatInt(n.ID, 10),
			Headline:  n.Headline,
			Summary:   n.Summary,
			Source:    n.Source,
			Symbols:   n.Symbols,
			CreatedAt: n.CreatedAt,
		})
	}
	return items, nil
}
