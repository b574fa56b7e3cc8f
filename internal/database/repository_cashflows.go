package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
// CASHFLOWS
// ============================================================================

// CreateCashflow inserts a new deposit or withdrawal.
func (r *Repository) CreateCashflow(ctx context.Context, cf *Cashflow) error {
	if cf.ID == "" {
		cf.ID = uuid.NewString()
	}

	query := `
		INSERT INTO cashflows (id, user_id, type, amount, currency, label, notes, transacted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.Pool.QueryRow(
		ctx, query,
		cf.ID, cf.UserID, cf.Type, cf.Amount, cf.Currency, cf.Label, cf.Notes, cf.TransactedAt,
	).Scan(&cf.CreatedAt)
	if err != nil {
		return err
	}

	r.recordAudit(ctx, cf.UserID, "create", "cashflow", cf.ID, cf)
	return nil
}

// UpdateCashflow updates a cashflow owned by the given user.
func (r *Repository) UpdateCashflow(ctx context.Context, cf *Cashflow) error {
	query := `
		UPDATE cashflows
		SET type = $3, amount = $4, currency = $5, label = $6, notes = $7, transacted_at = $8
		WHERE id = $1 AND user_id = $2
	`
	tag, err := r.db.Pool.Exec(
		ctx, query,
		cf.ID, cf.UserID, cf.Type, cf.Amount, cf.Currency, cf.Label, cf.Notes, cf.TransactedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cashflow %s not found", cf.ID)
	}

	r.recordAudit(ctx, cf.UserID, "update", "cashflow", cf.ID, cf)
	return nil
}

// DeleteCashflow removes a cashflow owned by the given user.
func (r *Repository) DeleteCashflow(ctx context.Context, userID, cashflowID string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM cashflows WHERE id = $1 AND user_id = $2`, cashflowID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cashflow %s not found", cashflowID)
	}

	r.recordAudit(ctx, userID, "delete", "cashflow", cashflowID, nil)
	return nil
}

// ListCashflowsForUser retrieves all cashflows for a user, newest first.
func (r *Repository) ListCashflowsForUser(ctx context.Context, userID string) ([]*Cashflow, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, type, amount, currency, label, COALESCE(notes, ''), transacted_at, created_at
		FROM cashflows
		WHERE user_id = $1
		ORDER BY transacted_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cashflows []*Cashflow
	for rows.Next() {
		cf := &Cashflow{}
		err := rows.Scan(&cf.ID, &cf.UserID, &cf.Type, &cf.Amount, &cf.Currency,
			&cf.Label, &cf.Notes, &cf.TransactedAt, &cf.CreatedAt)
		if err != nil {
			return nil, err
		}
		cashflows = append(cashflows, cf)
	}
	return cashflows, rows.Err()
}
