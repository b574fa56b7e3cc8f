package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ============================================================================
// BINDINGS
// ============================================================================

// CreateBinding records an investor's request to follow a trader.
func (r *Repository) CreateBinding(ctx context.Context, binding *Binding) error {
	if binding.ID == "" {
		binding.ID = uuid.NewString()
	}
	if binding.Status == "" {
		binding.Status = BindingPending
	}

	query := `
		INSERT INTO bindings (id, investor_id, trader_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		binding.ID, binding.InvestorID, binding.TraderID, binding.Status,
	).Scan(&binding.CreatedAt, &binding.UpdatedAt)
}

// UpdateBindingStatus transitions a binding. Only the trader on the binding
// may approve or reject it.
func (r *Repository) UpdateBindingStatus(ctx context.Context, traderID, bindingID, status string) (*Binding, error) {
	binding := &Binding{ID: bindingID, TraderID: traderID, Status: status}
	err := r.db.Pool.QueryRow(ctx, `
		UPDATE bindings SET status = $3, updated_at = NOW()
		WHERE id = $1 AND trader_id = $2
		RETURNING investor_id, created_at, updated_at
	`, bindingID, traderID, status).Scan(&binding.InvestorID, &binding.CreatedAt, &binding.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("binding %s not found", bindingID)
	}
	if err != nil {
		return nil, err
	}
	return binding, nil
}

// GetApprovedBindingTraderID resolves which trader's data an investor may
// read. Returns empty string when no approved binding exists.
func (r *Repository) GetApprovedBindingTraderID(ctx context.Context, investorID string) (string, error) {
	var traderID string
	err := r.db.Pool.QueryRow(ctx, `
		SELECT trader_id FROM bindings
		WHERE investor_id = $1 AND status = 'approved'
		ORDER BY updated_at DESC
		LIMIT 1
	`, investorID).Scan(&traderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return traderID, nil
}

// ListBindingsForUser retrieves bindings where the user is either side.
func (r *Repository) ListBindingsForUser(ctx context.Context, userID string) ([]*Binding, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, investor_id, trader_id, status, created_at, updated_at
		FROM bindings
		WHERE investor_id = $1 OR trader_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b := &Binding{}
		err := rows.Scan(&b.ID, &b.InvestorID, &b.TraderID, &b.Status, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}
