package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// TRADES
// ============================================================================

// CreateTrade inserts a new trade and records the mutation in the audit log.
func (r *Repository) CreateTrade(ctx context.Context, trade *Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}

	details, err := marshalDetails(trade.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO trades (id, user_id, category, asset, price, currency, quantity, fees, profit_loss, details, notes, transacted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err = r.db.Pool.QueryRow(
		ctx, query,
		trade.ID, trade.UserID, trade.Category, trade.Asset, trade.Price, trade.Currency,
		trade.Quantity, trade.Fees, trade.ProfitLoss, details, trade.Notes, trade.TransactedAt,
	).Scan(&trade.CreatedAt, &trade.UpdatedAt)
	if err != nil {
		return err
	}

	r.recordAudit(ctx, trade.UserID, "create", "trade", trade.ID, trade)
	return nil
}

// UpdateTrade updates an existing trade owned by the given user.
func (r *Repository) UpdateTrade(ctx context.Context, trade *Trade) error {
	details, err := marshalDetails(trade.Details)
	if err != nil {
		return err
	}

	query := `
		UPDATE trades
		SET category = $3, asset = $4, price = $5, currency = $6, quantity = $7,
		    fees = $8, profit_loss = $9, details = $10, notes = $11, transacted_at = $12,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err = r.db.Pool.QueryRow(
		ctx, query,
		trade.ID, trade.UserID, trade.Category, trade.Asset, trade.Price, trade.Currency,
		trade.Quantity, trade.Fees, trade.ProfitLoss, details, trade.Notes, trade.TransactedAt,
	).Scan(&trade.UpdatedAt)
	if err != nil {
		return err
	}

	r.recordAudit(ctx, trade.UserID, "update", "trade", trade.ID, trade)
	return nil
}

// DeleteTrade removes a trade owned by the given user.
func (r *Repository) DeleteTrade(ctx context.Context, userID, tradeID string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM trades WHERE id = $1 AND user_id = $2`, tradeID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trade %s not found", tradeID)
	}

	r.recordAudit(ctx, userID, "delete", "trade", tradeID, nil)
	return nil
}

// GetTradeByID retrieves a trade by ID, scoped to its owner.
func (r *Repository) GetTradeByID(ctx context.Context, userID, tradeID string) (*Trade, error) {
	query := tradeSelect + ` WHERE id = $1 AND user_id = $2`
	trades, err := r.queryTrades(ctx, query, tradeID, userID)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("trade %s not found", tradeID)
	}
	return trades[0], nil
}

// ListTradesForUser retrieves all trades for a user, newest first. An empty
// category returns every category.
func (r *Repository) ListTradesForUser(ctx context.Context, userID string, category TradeCategory) ([]*Trade, error) {
	if category == "" {
		query := tradeSelect + ` WHERE user_id = $1 ORDER BY transacted_at DESC`
		return r.queryTrades(ctx, query, userID)
	}
	query := tradeSelect + ` WHERE user_id = $1 AND category = $2 ORDER BY transacted_at DESC`
	return r.queryTrades(ctx, query, userID, category)
}

const tradeSelect = `
	SELECT id, user_id, category, asset, price, currency, quantity, fees,
	       profit_loss, details, notes, transacted_at, created_at, updated_at
	FROM trades`

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*Trade, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		trade := &Trade{}
		var details []byte
		var notes *string
		err := rows.Scan(
			&trade.ID, &trade.UserID, &trade.Category, &trade.Asset, &trade.Price,
			&trade.Currency, &trade.Quantity, &trade.Fees, &trade.ProfitLoss,
			&details, &notes, &trade.TransactedAt, &trade.CreatedAt, &trade.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if notes != nil {
			trade.Notes = *notes
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &trade.Details); err != nil {
				return nil, fmt.Errorf("malformed details for trade %s: %w", trade.ID, err)
			}
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

func marshalDetails(details map[string]interface{}) ([]byte, error) {
	if details == nil {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trade details: %w", err)
	}
	return data, nil
}

// ============================================================================
// AUDIT LOG
// ============================================================================

// recordAudit appends an entry to the audit log. Audit failures are not
// allowed to fail the mutation they describe.
func (r *Repository) recordAudit(ctx context.Context, userID, action, entity, entityID string, payload interface{}) {
	var data []byte
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO audit_log (user_id, action, entity, entity_id, payload) VALUES ($1, $2, $3, $4, $5)`,
		userID, action, entity, entityID, data,
	)
	if err != nil {
		log.Printf("audit log write failed: %v", err)
	}
}

// ListAuditEntries retrieves recent audit entries for a user.
func (r *Repository) ListAuditEntries(ctx context.Context, userID string, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, action, entity, entity_id, COALESCE(payload::text, ''), created_at
		FROM audit_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Entity,
			&entry.EntityID, &entry.Payload, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
