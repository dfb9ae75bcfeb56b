package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
)

// Scanner fetches market data for a watchlist and ranks the symbols
type Scanner struct {
	gateway    broker.Gateway
	cache      *ScannerCache
	config     ScannerConfig
	logger     zerolog.Logger
	now        func() time.Time
	mu         sync.RWMutex
	lastResult *ScanResult
}

// NewScanner creates a new scanner instance
func NewScanner(gateway broker.Gateway, config ScannerConfig, logger zerolog.Logger) *Scanner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.BarLimit <= 0 {
		config.BarLimit = DefaultScannerConfig().BarLimit
	}
	if config.Timeframe == "" {
		config.Timeframe = DefaultScannerConfig().Timeframe
	}
	return &Scanner{
		gateway: gateway,
		cache:   NewScannerCache(config.CacheTTL),
		config:  config,
		logger:  logger.With().Str("component", "scanner").Logger(),
		now:     time.Now,
	}
}

type scanOutcome struct {
	opp Opportunity
	err error
}

// Scan measures every symbol with a bounded worker pool. Symbols that fail
// to load are skipped and counted.
func (sc *Scanner) Scan(ctx context.Context, symbols []string) *ScanResult {
	startTime := sc.now()
	scanID := fmt.Sprintf("scan-%d", startTime.Unix())

	sc.logger.Debug().Str("scan_id", scanID).Int("symbols", len(symbols)).Msg("Starting scan")

	symbolChan := make(chan string, len(symbols))
	resultChan := make(chan scanOutcome, len(symbols))
	var wg sync.WaitGroup

	for i := 0; i < sc.config.WorkerCount; i++ {
		wg.Add(1)
		go sc.worker(ctx, symbolChan, resultChan, &wg)
	}

	for _, symbol := range symbols {
		symbolChan <- symbol
	}
	close(symbolChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	result := &ScanResult{
		ScanID:         scanID,
		StartTime:      startTime,
		SymbolsScanned: len(symbols),
	}
	for out := range resultChan {
		if out.err != nil {
			result.Skipped++
			sc.logger.Debug().Err(out.err).Msg("Symbol skipped")
			continue
		}
		result.Opportunities = append(result.Opportunities, out.opp)
	}

	sort.SliceStable(result.Opportunities, func(i, j int) bool {
		return result.Opportunities[i].Score > result.Opportunities[j].Score
	})

	result.EndTime = sc.now()
	result.Duration = result.EndTime.Sub(startTime)

	sc.mu.Lock()
	sc.lastResult = result
	sc.mu.Unlock()
	sc.cache.CleanupExpired()

	sc.logger.Info().
		Str("scan_id", scanID).
		Int("opportunities", len(result.Opportunities)).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("Scan completed")
	return result
}

// worker processes symbols from the channel
func (sc *Scanner) worker(ctx context.Context, symbolChan <-chan string, resultChan chan<- scanOutcome, wg *sync.WaitGroup) {
	defer wg.Done()

	for symbol := range symbolChan {
		if err := ctx.Err(); err != nil {
			resultChan <- scanOutcome{err: fmt.Errorf("%s: %w", symbol, err)}
			continue
		}
		opp, err := sc.ScanSymbol(ctx, symbol)
		resultChan <- scanOutcome{opp: opp, err: err}
	}
}

// ScanSymbol measures a single symbol
func (sc *Scanner) ScanSymbol(ctx context.Context, symbol string) (Opportunity, error) {
	if opp, ok := sc.cache.Get(symbol); ok {
		return opp, nil
	}

	bars, err := sc.gateway.GetBars(ctx, symbol, sc.config.Timeframe, sc.config.BarLimit)
	if err != nil {
		return Opportunity{}, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}
	quote, err := sc.gateway.GetQuote(ctx, symbol)
	if err != nil {
		return Opportunity{}, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	opp, err := Measure(symbol, bars, *quote, sc.now())
	if err != nil {
		return Opportunity{}, err
	}
	sc.cache.Set(opp)
	return opp, nil
}

// GetLastResult returns the most recent scan result
func (sc *Scanner) GetLastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}
