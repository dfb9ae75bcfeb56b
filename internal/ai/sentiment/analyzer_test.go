package sentiment

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
)

type fakeNews struct {
	items []broker.NewsItem
	calls int
}

func (f *fakeNews) GetNews(ctx context.Context, symbol string, limit int) ([]broker.NewsItem, error) {
	f.calls++
	return f.items, nil
}

func TestScoreText(t *testing.T) {
	tests := []struct {
		text     string
		expected float64
	}{
		{"Apple beats estimates, shares surge", 1},
		{"Regulator opens probe after recall", -1},
		{"Company beats estimates but issues warning", 0},
		{"Shares unchanged in quiet session", 0},
	}
	for _, tt := range tests {
		if got := ScoreText(tt.text); got != tt.expected {
			t.Errorf("ScoreText(%q): Expected %.2f, got %.2f", tt.text, tt.expected, got)
		}
	}
}

func TestCalculateNewsScoreRecencyWeighting(t *testing.T) {
	now := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	items := []ScoredItem{
		{Sentiment: 1, PublishedAt: now.Add(-30 * time.Minute)},
		{Sentiment: -1, PublishedAt: now.Add(-48 * time.Hour)},
	}
	// (1*2 + -1*0.5) / 2.5
	expected := 0.6
	if got := calculateNewsScore(items, now); math.Abs(got-expected) > 1e-9 {
		t.Errorf("Expected %.2f, got %.4f", expected, got)
	}
}

func TestAnalyzeSymbolSentimentCaches(t *testing.T) {
	now := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	news := &fakeNews{items: []broker.NewsItem{
		{Headline: "AAPL upgraded, record growth", CreatedAt: now.Add(-time.Hour * 2)},
	}}
	a := NewAnalyzer(DefaultSentimentConfig(), news, zerolog.Nop())
	a.now = func() time.Time { return now }

	score, err := a.AnalyzeSymbolSentiment(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if score.Label != LabelBullish || score.Overall != 1 {
		t.Errorf("Expected bullish 1.0, got %s %.2f", score.Label, score.Overall)
	}
	a.AnalyzeSymbolSentiment(context.Background(), "AAPL")
	if news.calls != 1 {
		t.Errorf("Expected 1 news fetch, got %d", news.calls)
	}
}
