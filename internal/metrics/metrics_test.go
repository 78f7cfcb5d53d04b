package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.WalletTransaction("add_cash", "approved", 100)
	m.PrizePayout("paid")
	m.Registration("confirmed")
	m.RoomPublished("sweep", 2)
	m.AnnouncementReach(10)
	m.SetPending("withdraw", 1)
	m.ObserveJob("room_sweep", 0.1)
	if m.Registry() != nil {
		t.Fatal("expected nil registry")
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New("arena_test")
	m.WalletTransaction("prize_win", "completed", 2500)
	m.PrizePayout("failed")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	text := string(body)
	if !strings.Contains(text, `arena_test_wallet_transactions_total{status="completed",type="prize_win"} 1`) {
		t.Fatalf("missing wallet counter in output:\n%s", text)
	}
	if !strings.Contains(text, `arena_test_prize_payouts_total{outcome="failed"} 1`) {
		t.Fatalf("missing payout counter in output:\n%s", text)
	}
}
