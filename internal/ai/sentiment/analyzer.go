package sentiment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
)

// SentimentConfig holds sentiment analyzer configuration
type SentimentConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled" default:"true"`
	NewsLimit int           `json:"news_limit" yaml:"news_limit" default:"20"`
	CacheTTL  time.Duration `json:"cache_ttl" yaml:"cache_ttl" default:"15m"`
}

// DefaultSentimentConfig returns default configuration
func DefaultSentimentConfig() *SentimentConfig {
	return &SentimentConfig{
		Enabled:   true,
		NewsLimit: 20,
		CacheTTL:  15 * time.Minute,
	}
}

// Labels for the overall sentiment
const (
	LabelBullish = "bullish"
	LabelBearish = "bearish"
	LabelNeutral = "neutral"
)

// SentimentScore represents aggregated sentiment for one symbol
type SentimentScore struct {
	Symbol    string    `json:"symbol"`
	Overall   float64   `json:"overall"` // -1 (bearish) to +1 (bullish)
	Label     string    `json:"label"`
	Articles  int       `json:"articles"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoredItem is a headline with its keyword score
type ScoredItem struct {
	Headline    string
	Sentiment   float64
	PublishedAt time.Time
}

var positiveWords = []string{
	"beat", "beats", "surge", "surges", "soar", "soars", "rally", "upgrade", "upgraded",
	"record", "growth", "strong", "bullish", "raises", "outperform", "buyback", "profit",
	"jumps", "gains", "approval", "partnership",
}

var negativeWords = []string{
	"miss", "misses", "plunge", "plunges", "drop", "drops", "falls", "downgrade", "downgraded",
	"lawsuit", "probe", "recall", "weak", "bearish", "cuts", "loss", "layoffs", "fraud",
	"investigation", "warning", "bankruptcy",
}

// Analyzer scores symbol sentiment from news headlines
type Analyzer struct {
	config *SentimentConfig
	news   broker.NewsSource
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]*SentimentScore
}

// NewAnalyzer creates a new sentiment analyzer
func NewAnalyzer(config *SentimentConfig, news broker.NewsSource, logger zerolog.Logger) *Analyzer {
	if config == nil {
		config = DefaultSentimentConfig()
	}
	return &Analyzer{
		config: config,
		news:   news,
		logger: logger.With().Str("component", "sentiment").Logger(),
		now:    time.Now,
		cache:  make(map[string]*SentimentScore),
	}
}

// AnalyzeSymbolSentiment returns the news sentiment for a symbol, cached for CacheTTL
func (a *Analyzer) AnalyzeSymbolSentiment(ctx context.Context, symbol string) (*SentimentScore, error) {
	if !a.config.Enabled || a.news == nil {
		return &SentimentScore{Symbol: symbol, Label: LabelNeutral, UpdatedAt: a.now()}, nil
	}

	a.mu.RLock()
	cached, ok := a.cache[symbol]
	a.mu.RUnlock()
	if ok && a.now().Sub(cached.UpdatedAt) < a.config.CacheTTL {
		return cached, nil
	}

	items, err := a.news.GetNews(ctx, symbol, a.config.NewsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news for %s: %w", symbol, err)
	}

	scored := make([]ScoredItem, 0, len(items))
	for _, item := range items {
		scored = append(scored, ScoredItem{
			Headline:    item.Headline,
			Sentiment:   ScoreText(item.Headline + " " + item.Summary),
			PublishedAt: item.CreatedAt,
		})
	}

	overall := calculateNewsScore(scored, a.now())
	score := &SentimentScore{
		Symbol:    symbol,
		Overall:   overall,
		Label:     labelFor(overall),
		Articles:  len(scored),
		UpdatedAt: a.now(),
	}

	a.mu.Lock()
	a.cache[symbol] = score
	a.mu.Unlock()

	a.logger.Debug().Str("symbol", symbol).Float64("score", overall).Int("articles", len(scored)).Msg("Sentiment updated")
	return score, nil
}

// ScoreText returns a keyword score in [-1, 1]
func ScoreText(text string) float64 {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	pos, neg := 0, 0
	for _, f := range fields {
		for _, w := range positiveWords {
			if f == w {
				pos++
			}
		}
		for _, w := range negativeWords {
			if f == w {
				neg++
			}
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// calculateNewsScore calculates aggregate news sentiment
func calculateNewsScore(news []ScoredItem, now time.Time) float64 {
	if len(news) == 0 {
		return 0
	}

	// Weight recent news more heavily
	totalWeight := 0.0
	weightedSum := 0.0

	for _, item := range news {
		age := now.Sub(item.PublishedAt).Hours()
		weight := 1.0
		if age < 1 {
			weight = 2.0
		} else if age < 6 {
			weight = 1.5
		} else if age > 24 {
			weight = 0.5
		}

		weightedSum += item.Sentiment * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0
	}

	return weightedSum / totalWeight
}

func labelFor(overall float64) string {
	if overall > 0.3 {
		return LabelBullish
	} else if overall < -0.3 {
		return LabelBearish
	}
	return LabelNeutral
}

// IsEnabled returns if sentiment analysis is enabled
func (a *Analyzer) IsEnabled() bool {
	return a.config.Enabled
}
