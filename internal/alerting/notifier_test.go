package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/storage"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	note := Notification{ChatID: 42, Text: "Timer fired"}

	if err := notifier.Notify(context.Background(), note); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "42" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if received["text"] != "Timer fired" {
		t.Fatalf("unexpected text: %#v", received)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), Notification{ChatID: 1, Text: "x"}); err == nil {
		t.Fatal("ok=false must produce an error")
	}
}

func TestMentions(t *testing.T) {
	members := []storage.GroupMember{
		{UserID: 1, Username: "alice"},
		{UserID: 2},
		{UserID: 3, Username: "bob"},
	}

	if got, want := Mentions(members), "@alice @bob"; got != want {
		t.Fatalf("mentions = %q, want %q", got, want)
	}
	if got := Mentions(nil); got != "" {
		t.Fatalf("empty member list should yield no mentions, got %q", got)
	}
}

func TestGroupMessageCarriesMentions(t *testing.T) {
	alert := storage.Alert{
		Resource:    "wood",
		TargetPrice: decimal.RequireFromString("7.5"),
	}
	members := []storage.GroupMember{{UserID: 1, Username: "alice"}}

	msg := TargetReachedGroupMessage(alert, decimal.RequireFromString("7.4"), members)
	if !strings.Contains(msg, "@alice") {
		t.Fatalf("group message should mention members, got %q", msg)
	}
	if !strings.Contains(msg, "7.50") {
		t.Fatalf("group message should include the target price, got %q", msg)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
