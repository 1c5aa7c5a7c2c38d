package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isdlab/reimburse/internal/models"
)

// ClaimItemRepository handles claim item database operations
type ClaimItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimItemRepository creates a new claim item repository
func NewClaimItemRepository(db *sql.DB, logger *zap.Logger) *ClaimItemRepository {
	return &ClaimItemRepository{
		db:     db,
		logger: logger,
	}
}

const itemColumns = `
	item_id, claim_id, description, amount, currency,
	paid_amount, paid_currency, justification, created_at
`

// Create inserts a new item under its claim
func (r *ClaimItemRepository) Create(ctx context.Context, tx *sql.Tx, item *models.ClaimItem) error {
	query := `
		INSERT INTO claim_items (
			claim_id, description, amount, currency,
			paid_amount, paid_currency, justification
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	args := []interface{}{
		item.ClaimID,
		item.Description,
		item.Amount,
		item.Currency,
		item.PaidAmount,
		item.PaidCurrency,
		item.Justification,
	}

	var (
		result sql.Result
		err    error
	)
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, args...)
	} else {
		result, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to create claim item", zap.String("claim_id", item.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to create claim item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	item.ItemID = id
	item.CreatedAt = time.Now()
	return nil
}

// GetByID retrieves one item. Returns nil when no item exists.
func (r *ClaimItemRepository) GetByID(ctx context.Context, itemID int64) (*models.ClaimItem, error) {
	query := `SELECT ` + itemColumns + ` FROM claim_items WHERE item_id = ?`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, itemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get claim item", zap.Int64("item_id", itemID), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim item: %w", err)
	}
	return item, nil
}

// ItemsByClaim retrieves a claim's items in creation order
func (r *ClaimItemRepository) ItemsByClaim(ctx context.Context, claimID string) ([]*models.ClaimItem, error) {
	query := `SELECT ` + itemColumns + `
		FROM claim_items
		WHERE claim_id = ?
		ORDER BY created_at ASC, item_id ASC`

	rows, err := r.db.QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to query claim items", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to query claim items: %w", err)
	}
	defer rows.Close()

	var items []*models.ClaimItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claim items: %w", err)
	}
	return items, nil
}

// Update rewrites an item's editable fields
func (r *ClaimItemRepository) Update(ctx context.Context, tx *sql.Tx, item *models.ClaimItem) error {
	query := `
		UPDATE claim_items
		SET description = ?, amount = ?, currency = ?,
			paid_amount = ?, paid_currency = ?, justification = ?
		WHERE item_id = ?
	`

	args := []interface{}{
		item.Description,
		item.Amount,
		item.Currency,
		item.PaidAmount,
		item.PaidCurrency,
		item.Justification,
		item.ItemID,
	}

	var (
		result sql.Result
		err    error
	)
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, args...)
	} else {
		result, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to update claim item", zap.Int64("item_id", item.ItemID), zap.Error(err))
		return fmt.Errorf("failed to update claim item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("claim item not found: %d", item.ItemID)
	}
	return nil
}

// Delete removes one item
func (r *ClaimItemRepository) Delete(ctx context.Context, tx *sql.Tx, itemID int64) error {
	query := `DELETE FROM claim_items WHERE item_id = ?`

	var (
		result sql.Result
		err    error
	)
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, itemID)
	} else {
		result, err = r.db.ExecContext(ctx, query, itemID)
	}
	if err != nil {
		r.logger.Error("Failed to delete claim item", zap.Int64("item_id", itemID), zap.Error(err))
		return fmt.Errorf("failed to delete claim item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("claim item not found: %d", itemID)
	}
	return nil
}

func scanItem(row rowScanner) (*models.ClaimItem, error) {
	var (
		item          models.ClaimItem
		paidAmount    sql.NullFloat64
		paidCurrency  sql.NullString
		justification sql.NullString
	)

	err := row.Scan(
		&item.ItemID,
		&item.ClaimID,
		&item.Description,
		&item.Amount,
		&item.Currency,
		&paidAmount,
		&paidCurrency,
		&justification,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.PaidCurrency = paidCurrency.String
	item.Justification = justification.String
	if paidAmount.Valid {
		item.PaidAmount = &paidAmount.Float64
	}
	return &item, nil
}
