package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/order"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, User: "u", Password: "p", Database: "trading", SSLMode: "require"}
	expected := "host=db port=5433 user=u password=p dbname=trading sslmode=require"
	if dsn := cfg.DSN(); dsn != expected {
		t.Errorf("Expected %q, got %q", expected, dsn)
	}
}

func TestMigrationsCreateTables(t *testing.T) {
	joined := strings.Join(Migrations(), "\n")
	for _, table := range []string{"system_settings", "trades", "analyses", "order_sequences"} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("Expected migration for %s", table)
		}
	}
}

// Integration tests run only when TEST_DATABASE_HOST is set.
func testDB(t *testing.T) *DB {
	host := os.Getenv("TEST_DATABASE_HOST")
	if host == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}
	db, err := NewDB(context.Background(), Config{
		Host:     host,
		Port:     5432,
		User:     os.Getenv("TEST_DATABASE_USER"),
		Password: os.Getenv("TEST_DATABASE_PASSWORD"),
		Database: os.Getenv("TEST_DATABASE_NAME"),
		SSLMode:  "disable",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	store := NewSettingsStore(testDB(t))
	ctx := context.Background()
	key := "test_" + time.Now().Format("150405.000000")

	if _, found, err := store.Get(ctx, key); err != nil || found {
		t.Fatalf("Expected missing key, got found=%v err=%v", found, err)
	}
	if err := store.Set(ctx, key, "true"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	value, found, err := store.Get(ctx, key)
	if err != nil || !found || value != "true" {
		t.Errorf("Expected true, got %q found=%v err=%v", value, found, err)
	}
}

func TestTradeRepositorySince(t *testing.T) {
	repo := NewTradeRepository(testDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	id := "t-" + now.Format("150405.000000")

	if err := repo.RecordTrade(ctx, order.Trade{
		ID: id, OrderID: "o1", Symbol: "AAPL", AssetClass: broker.AssetClassEquity,
		Side: broker.SideBuy, Quantity: 10, Price: 100, Value: 1000, ExecutedAt: now,
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	trades, err := repo.TradesSince(ctx, now.Add(-time.Second))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	found := false
	for _, tr := range trades {
		if tr.ID == id {
			found = tr.Side == broker.SideBuy && tr.Value == 1000
		}
	}
	if !found {
		t.Errorf("Expected trade %s in results", id)
	}
}

func TestTradeRepositoryKeepsEveryTrade(t *testing.T) {
	repo := NewTradeRepository(testDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	symbol := "T" + now.Format("150405")

	for _, side := range []broker.OrderSide{broker.SideBuy, broker.SideSell} {
		if err := repo.RecordTrade(ctx, order.Trade{
			OrderID: "o-" + string(side), Symbol: symbol, AssetClass: broker.AssetClassEquity,
			Side: side, Quantity: 1, Price: 10, Value: 10, ExecutedAt: now,
		}); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	trades, err := repo.TradesSince(ctx, now.Add(-time.Second))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	count := 0
	for _, tr := range trades {
		if tr.Symbol == symbol {
			count++
		}
	}
	if count != 2 {
		t.Errorf("Expected 2 trades for %s, got %d", symbol, count)
	}
}

func TestSequenceIncrements(t *testing.T) {
	repo := NewSequenceRepository(testDB(t))
	ctx := context.Background()
	key := time.Now().Format("150405.000")

	first, err := repo.IncrementDailySequence(ctx, key)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, _ := repo.IncrementDailySequence(ctx, key)
	if second != first+1 {
		t.Errorf("Expected %d, got %d", first+1, second)
	}
}
