package portfolio

import (
	"context"
	"errors"
	"sync"
	"time"

	"coinfolio/internal/database"
	"coinfolio/internal/pricing"

	"github.com/rs/zerolog"
)

// Store is the slice of the persistence layer the valuation engine reads.
// Rows it returns are assumed to be access-filtered already; the engine
// performs no authorization checks of its own.
type Store interface {
	ListTradesForUser(ctx context.Context, userID string, category database.TradeCategory) ([]*database.Trade, error)
	ListCashflowsForUser(ctx context.Context, userID string) ([]*database.Cashflow, error)
}

// ErrSpotUnavailable is returned alongside a partial snapshot when the
// price service was unreachable and nothing covered the spot book. The
// manual and cash slices of the snapshot are still valid.
var ErrSpotUnavailable = errors.New("spot valuation unavailable")

// Service is the one entry point UI-facing handlers call for portfolio
// valuation. It owns the superseding logic: a valuation pass that finishes
// after a newer pass started never overwrites the stored last-known-good
// snapshot.
type Service struct {
	store  Store
	prices PriceSource
	clock  pricing.Clock
	logger zerolog.Logger

	mu         sync.Mutex
	generation map[string]uint64   // userID -> latest pass started
	lastGood   map[string]Snapshot // userID -> last committed snapshot
}

// NewService creates a portfolio service. A nil clock uses wall time.
func NewService(store Store, prices PriceSource, clock pricing.Clock, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:      store,
		prices:     prices,
		clock:      clock,
		logger:     logger.With().Str("component", "portfolio").Logger(),
		generation: make(map[string]uint64),
		lastGood:   make(map[string]Snapshot),
	}
}

// ComputeSnapshot runs one full valuation pass for a user: load trades and
// cashflows concurrently, net positions, price them, aggregate the manual
// categories, and compose the grand total.
//
// When the price service is unreachable the composed snapshot still carries
// the manual and cash figures, and ErrSpotUnavailable is returned with it so
// the caller can choose between partial data and a full error state. Any
// other error means no snapshot could be produced.
func (s *Service) ComputeSnapshot(ctx context.Context, userID, currency string) (Snapshot, error) {
	gen := s.begin(userID)

	var (
		wg          sync.WaitGroup
		trades      []*database.Trade
		cashflows   []*database.Cashflow
		tradesErr   error
		cashflowErr error
	)

	// Trades and cashflows are independent reads.
	wg.Add(2)
	go func() {
		defer wg.Done()
		trades, tradesErr = s.store.ListTradesForUser(ctx, userID, "")
	}()
	go func() {
		defer wg.Done()
		cashflows, cashflowErr = s.store.ListCashflowsForUser(ctx, userID)
	}()
	wg.Wait()

	if tradesErr != nil {
		return Snapshot{}, tradesErr
	}
	if cashflowErr != nil {
		return Snapshot{}, cashflowErr
	}

	// Aggregation must fully consume the trade list before any price lookup:
	// the lookup set is derived from it.
	positions := AggregatePositions(trades)
	manual := AggregateManual(trades, s.logger)
	cash := SummarizeCashflows(cashflows)

	spot, valErr := Valuate(ctx, positions, currency, s.prices)

	snapshot := Compose(currency, spot, manual, cash, s.clock())

	if valErr != nil {
		snapshot.Warnings = append(snapshot.Warnings, "spot valuation unavailable: price service unreachable")
		s.logger.Warn().Err(valErr).Str("user_id", userID).Msg("snapshot computed without spot valuation")
		return snapshot, ErrSpotUnavailable
	}

	s.commit(userID, gen, snapshot)
	return snapshot, nil
}

// LastSnapshot returns the most recent successfully committed snapshot for
// a user, for rendering last-known-good data while a refresh is in flight
// or failing.
func (s *Service) LastSnapshot(userID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.lastGood[userID]
	return snapshot, ok
}

// begin records the start of a valuation pass and returns its generation
// token.
func (s *Service) begin(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation[userID]++
	return s.generation[userID]
}

// commit stores the snapshot unless a newer pass has started since this one
// began; a superseded result is discarded so stale prices never overwrite
// fresher state.
func (s *Service) commit(userID string, gen uint64, snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation[userID] != gen {
		s.logger.Debug().Str("user_id", userID).Uint64("generation", gen).Msg("superseded snapshot discarded")
		return
	}
	s.lastGood[userID] = snapshot
}
