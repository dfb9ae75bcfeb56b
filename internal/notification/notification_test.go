package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type recordingNotifier struct {
	name    string
	enabled bool
	err     error
	sent    []*Notification
}

func (r *recordingNotifier) Send(ctx context.Context, n *Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}
func (r *recordingNotifier) Name() string    { return r.name }
func (r *recordingNotifier) IsEnabled() bool { return r.enabled }

func TestManagerFanOut(t *testing.T) {
	a := &recordingNotifier{name: "a", enabled: true}
	b := &recordingNotifier{name: "b", enabled: true, err: errors.New("down")}
	off := &recordingNotifier{name: "off"}

	m := NewManager(zerolog.Nop(), a, b, off)
	err := m.Send(context.Background(), "AAPL bought", map[string]interface{}{"type": "trade_open", "symbol": "AAPL"}, "AAPL")
	if err == nil || !strings.Contains(err.Error(), "b:") {
		t.Errorf("Expected last error from b, got %v", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("Expected both enabled notifiers to receive, got %d/%d", len(a.sent), len(b.sent))
	}
	if len(off.sent) != 0 {
		t.Error("Expected disabled notifier to be skipped")
	}
	n := a.sent[0]
	if n.Type != NotifyTradeOpen || n.Symbol != "AAPL" || n.ThreadKey != "AAPL" {
		t.Errorf("Expected trade_open AAPL, got %+v", n)
	}
	if n.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
	if names := m.Enabled(); len(names) != 2 {
		t.Errorf("Expected 2 enabled notifiers, got %v", names)
	}
}

func TestDiscordNotifier(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: server.URL})
	if err := d.Send(context.Background(), &Notification{Type: NotifyError, Title: "Boom", Message: "broker down"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	embeds, ok := payload["embeds"].([]interface{})
	if !ok || len(embeds) != 1 {
		t.Fatalf("Expected one embed, got %v", payload)
	}
	embed := embeds[0].(map[string]interface{})
	if embed["title"] != "Boom" || embed["color"].(float64) != 0xFF0000 {
		t.Errorf("Expected red Boom embed, got %v", embed)
	}
}

func TestTelegramNotifier(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			r.ParseForm()
			mu.Lock()
			texts = append(texts, r.Form.Get("text"))
			mu.Unlock()
			io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tg := NewTelegramNotifier(TelegramConfig{Enabled: true, BotToken: "token", ChatID: 42, APIEndpoint: server.URL + "/bot%s/%s"})
	if err := tg.Send(context.Background(), &Notification{Title: "Hello", Message: "world"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 1 || texts[0] != "Hello\n\nworld" {
		t.Errorf("Expected one message, got %q", texts)
	}
}

func TestTelegramDisabledWithoutChat(t *testing.T) {
	tg := NewTelegramNotifier(TelegramConfig{Enabled: true, BotToken: "token"})
	if tg.IsEnabled() {
		t.Error("Expected notifier without chat id to be disabled")
	}
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}
func (f *fakeWriter) Close() error { return nil }

func TestKafkaNotifierKeysByThread(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaNotifier{config: KafkaConfig{Enabled: true, Topic: "events"}, writer: w}

	if err := k.Send(context.Background(), &Notification{Type: NotifyTradeOpen, ThreadKey: "AAPL", Message: "bought"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := k.Send(context.Background(), &Notification{Type: NotifyCircuitBreaker, Message: "halted"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "AAPL" || string(w.msgs[1].Key) != "circuit_breaker" {
		t.Errorf("Expected keys AAPL/circuit_breaker, got %s/%s", w.msgs[0].Key, w.msgs[1].Key)
	}
	var decoded Notification
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil || decoded.Message != "bought" {
		t.Errorf("Expected JSON notification, got %s (%v)", w.msgs[0].Value, err)
	}
}
