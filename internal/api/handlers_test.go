package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinfolio/internal/auth"
	"coinfolio/internal/database"
	"coinfolio/internal/events"
	"coinfolio/internal/logging"
	"coinfolio/internal/portfolio"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type fakeStore struct {
	trades    []*database.Trade
	cashflows []*database.Cashflow
}

func (f *fakeStore) ListTradesForUser(ctx context.Context, userID string, category database.TradeCategory) ([]*database.Trade, error) {
	return f.trades, nil
}

func (f *fakeStore) ListCashflowsForUser(ctx context.Context, userID string) ([]*database.Cashflow, error) {
	return f.cashflows, nil
}

type fakePriceSource struct {
	prices map[string]*float64
	err    error
}

func (f *fakePriceSource) Prices(ctx context.Context, symbols []string, currency string) (map[string]*float64, error) {
	return f.prices, f.err
}

// snapshotServer mounts the snapshot handler behind a stubbed identity so
// handler behavior is testable without a database or JWTs.
func snapshotServer(t *testing.T, store *fakeStore, prices portfolio.PriceSource, role string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		router:   gin.New(),
		eventBus: events.NewEventBus(),
		portfolio: portfolio.NewService(store, prices,
			func() time.Time { return time.Unix(1700000000, 0) }, zerolog.Nop()),
		rateLimiter: NewRateLimiter(120, time.Minute),
		logger:      logging.New(&logging.Config{Level: "ERROR"}),
	}

	s.router.GET("/api/portfolio/snapshot", func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, "user-1")
		c.Set(auth.ContextKeyRole, role)
		c.Next()
	}, s.handlePortfolioSnapshot)

	return s
}

func TestSnapshotEndpoint(t *testing.T) {
	price := 45000.0
	store := &fakeStore{
		trades: []*database.Trade{
			{
				Category: database.CategorySpot, Asset: "BTC",
				Price: 40000, Quantity: 0.1, Fees: 10,
				Details: map[string]interface{}{"side": "buy"},
			},
		},
		cashflows: []*database.Cashflow{{Type: database.CashflowDeposit, Amount: 1000}},
	}
	s := snapshotServer(t, store, &fakePriceSource{prices: map[string]*float64{"BTC": &price}}, database.RoleTrader)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/snapshot?currency=USD", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", w.Code, w.Body.String())
	}

	var response struct {
		Success bool               `json:"success"`
		Data    portfolio.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if !response.Success {
		t.Error("Expected success response")
	}
	if response.Data.TotalInvested != 4010 {
		t.Errorf("Expected total invested 4010, got %f", response.Data.TotalInvested)
	}
	if response.Data.GrandTotal != 5500 {
		t.Errorf("Expected grand total 5500, got %f", response.Data.GrandTotal)
	}
}

func TestSnapshotEndpointPartialOnPriceFailure(t *testing.T) {
	store := &fakeStore{
		trades: []*database.Trade{
			{
				Category: database.CategorySpot, Asset: "BTC",
				Price: 40000, Quantity: 0.1, Fees: 10,
			},
		},
	}
	s := snapshotServer(t, store, &fakePriceSource{err: errors.New("connection refused")}, database.RoleTrader)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/snapshot", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for partial snapshot, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["partial"] != true {
		t.Error("Expected partial flag on price-service failure")
	}
}

func TestSnapshotEndpointRejectsUnknownCurrency(t *testing.T) {
	s := snapshotServer(t, &fakeStore{}, &fakePriceSource{}, database.RoleTrader)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/snapshot?currency=EUR", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestTradeRequestValidation(t *testing.T) {
	pnl := 50.0
	tests := []struct {
		name    string
		req     tradeRequest
		wantErr bool
	}{
		{
			name: "valid spot trade",
			req:  tradeRequest{Category: "spot", Asset: "BTC", Price: 40000, Quantity: 0.1},
		},
		{
			name:    "unknown category",
			req:     tradeRequest{Category: "margin", Asset: "BTC", Price: 1, Quantity: 1},
			wantErr: true,
		},
		{
			name:    "investment without profit_loss",
			req:     tradeRequest{Category: "defi", Asset: "USDT", Price: 1, Quantity: 100},
			wantErr: true,
		},
		{
			name: "investment with profit_loss",
			req:  tradeRequest{Category: "defi", Asset: "USDT", Price: 1, Quantity: 100, ProfitLoss: &pnl},
		},
		{
			name:    "unsupported currency",
			req:     tradeRequest{Category: "spot", Asset: "BTC", Price: 1, Quantity: 1, Currency: "EUR"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade, problem := tt.req.toTrade("user-1")
			if tt.wantErr && problem == "" {
				t.Error("Expected a validation problem")
			}
			if !tt.wantErr {
				if problem != "" {
					t.Fatalf("Unexpected problem: %s", problem)
				}
				if trade.Currency == "" {
					t.Error("Expected currency default to be applied")
				}
			}
		})
	}
}

func TestRateLimiterWindow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("/api/trades") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("/api/trades") {
		t.Error("Expected the fourth request to be limited")
	}

	// A different endpoint has its own budget
	if !limiter.Allow("/api/cashflows") {
		t.Error("Expected an unrelated endpoint to be allowed")
	}
}
