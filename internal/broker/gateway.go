package broker

import (
	"context"
	"errors"
)

var (
	// ErrNoMarketData is returned when a symbol has no bars or quote
	ErrNoMarketData = errors.New("no market data")
	// ErrOrderRejected is returned when the broker refuses an order
	ErrOrderRejected = errors.New("order rejected")
)

// Gateway defines the brokerage operations the trading core depends on
type Gateway interface {
	GetAccount(ctx context.Context) (*Account, error)
	GetPositions(ctx context.Context) ([]Position, error)
	// GetPosition returns nil, nil when no position is held
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	ClosePosition(ctx context.Context, symbol string) (bool, error)
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetOptionsChain(ctx context.Context, symbol string) (*OptionsChain, error)
	GetOptionQuote(ctx context.Context, optionSymbol string) (*OptionQuote, error)
}

// NewsSource provides symbol headlines for sentiment scoring
type NewsSource interface {
	GetNews(ctx context.Context, symbol string, limit int) ([]NewsItem, error)
}

// Ensure both clients implement the interfaces
var (
	_ Gateway    = (*AlpacaClient)(nil)
	_ Gateway    = (*MockGateway)(nil)
	_ NewsSource = (*AlpacaClient)(nil)
	_ NewsSource = (*MockGateway)(nil)
)
