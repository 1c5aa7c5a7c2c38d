package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdlab/reimburse/internal/models"
)

// ClaimRepository handles claim database operations
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) *ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

const claimColumns = `
	claim_id, alias_name, from_date, to_date, total_amount, total_currency,
	paid_amount, paid_currency, expense_group, business_purpose,
	receipt_path, created_at
`

// Create inserts a new claim
func (r *ClaimRepository) Create(ctx context.Context, tx *sql.Tx, claim *models.Claim) error {
	query := `
		INSERT INTO claims (
			claim_id, alias_name, from_date, to_date, total_amount,
			total_currency, paid_amount, paid_currency, expense_group,
			business_purpose, receipt_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []interface{}{
		claim.ClaimID,
		claim.AliasName,
		claim.FromDate,
		claim.ToDate,
		claim.TotalAmount,
		claim.TotalCurrency,
		claim.PaidAmount,
		claim.PaidCurrency,
		claim.ExpenseGroup,
		claim.BusinessPurpose,
		claim.ReceiptPath,
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to create claim", zap.String("claim_id", claim.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", err)
	}

	claim.CreatedAt = time.Now()
	return nil
}

// GetByID retrieves a claim by its UUID. Returns nil when no claim exists.
func (r *ClaimRepository) GetByID(ctx context.Context, claimID string) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE claim_id = ?`

	claim, err := scanClaim(r.db.QueryRowContext(ctx, query, claimID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get claim", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// List retrieves a page of claims, newest first
func (r *ClaimRepository) List(ctx context.Context, limit, offset int) ([]*models.Claim, error) {
	query := `SELECT ` + claimColumns + `
		FROM claims
		ORDER BY created_at DESC, claim_id DESC
		LIMIT ? OFFSET ?`
	return r.queryClaims(ctx, query, limit, offset)
}

// AllClaims retrieves all claims in chronological from-date order
func (r *ClaimRepository) AllClaims(ctx context.Context) ([]*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims ORDER BY from_date ASC, created_at ASC`
	return r.queryClaims(ctx, query)
}

// ClaimsByMonth retrieves the claims whose from-date falls in the given
// calendar month
func (r *ClaimRepository) ClaimsByMonth(ctx context.Context, year, month int) ([]*models.Claim, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	query := `SELECT ` + claimColumns + `
		FROM claims
		WHERE from_date >= ? AND from_date < ?
		ORDER BY from_date ASC, created_at ASC`
	return r.queryClaims(ctx, query, start, end)
}

// ClaimsByIDs retrieves the named claims in chronological order. IDs that
// do not exist are silently absent from the result
func (r *ClaimRepository) ClaimsByIDs(ctx context.Context, ids []string) ([]*models.Claim, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT ` + claimColumns + `
		FROM claims
		WHERE claim_id IN (` + placeholders + `)
		ORDER BY from_date ASC, created_at ASC`
	return r.queryClaims(ctx, query, args...)
}

// Update rewrites a claim's editable fields
func (r *ClaimRepository) Update(ctx context.Context, tx *sql.Tx, claim *models.Claim) error {
	query := `
		UPDATE claims
		SET alias_name = ?, from_date = ?, to_date = ?, total_amount = ?,
			total_currency = ?, paid_amount = ?, paid_currency = ?,
			expense_group = ?, business_purpose = ?, receipt_path = ?
		WHERE claim_id = ?
	`

	args := []interface{}{
		claim.AliasName,
		claim.FromDate,
		claim.ToDate,
		claim.TotalAmount,
		claim.TotalCurrency,
		claim.PaidAmount,
		claim.PaidCurrency,
		claim.ExpenseGroup,
		claim.BusinessPurpose,
		claim.ReceiptPath,
		claim.ClaimID,
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
		r.logger.Error("Failed to update claim", zap.String("claim_id", claim.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to update claim: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("claim not found: %s", claim.ClaimID)
	}
	return nil
}

// Delete removes a claim. Items cascade through the schema's foreign key.
func (r *ClaimRepository) Delete(ctx context.Context, tx *sql.Tx, claimID string) error {
	query := `DELETE FROM claims WHERE claim_id = ?`

	var (
		result sql.Result
		err    error
	)
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, claimID)
	} else {
		result, err = r.db.ExecContext(ctx, query, claimID)
	}
	if err != nil {
		r.logger.Error("Failed to delete claim", zap.String("claim_id", claimID), zap.Error(err))
		return fmt.Errorf("failed to delete claim: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("claim not found: %s", claimID)
	}
	return nil
}

func (r *ClaimRepository) queryClaims(ctx context.Context, query string, args ...interface{}) ([]*models.Claim, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query claims", zap.Error(err))
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var claims []*models.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claims: %w", err)
	}
	return claims, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var (
		claim        models.Claim
		aliasName    sql.NullString
		paidAmount   sql.NullFloat64
		paidCurrency sql.NullString
		receiptPath  sql.NullString
	)

	err := row.Scan(
		&claim.ClaimID,
		&aliasName,
		&claim.FromDate,
		&claim.ToDate,
		&claim.TotalAmount,
		&claim.TotalCurrency,
		&paidAmount,
		&paidCurrency,
		&claim.ExpenseGroup,
		&claim.BusinessPurpose,
		&receiptPath,
		&claim.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.AliasName = aliasName.String
	claim.PaidCurrency = paidCurrency.String
	claim.ReceiptPath = receiptPath.String
	if paidAmount.Valid {
		claim.PaidAmount = &paidAmount.Float64
	}
	return &claim, nil
}
