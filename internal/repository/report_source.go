package repository

import (
	"context"

	"github.com/isdlab/reimburse/internal/models"
)

// ReportSource is the read-only view over claims and items consumed by the
// report assembler.
type ReportSource struct {
	claims *ClaimRepository
	items  *ClaimItemRepository
}

func NewReportSource(claims *ClaimRepository, items *ClaimItemRepository) *ReportSource {
	return &ReportSource{claims: claims, items: items}
}

func (s *ReportSource) AllClaims(ctx context.Context) ([]*models.Claim, error) {
	return s.claims.AllClaims(ctx)
}

func (s *ReportSource) ClaimsByMonth(ctx context.Context, year, month int) ([]*models.Claim, error) {
	return s.claims.ClaimsByMonth(ctx, year, month)
}

func (s *ReportSource) ClaimsByIDs(ctx context.Context, ids []string) ([]*models.Claim, error) {
	return s.claims.ClaimsByIDs(ctx, ids)
}

func (s *ReportSource) ItemsByClaim(ctx context.Context, claimID string) ([]*models.ClaimItem, error) {
	return s.items.ItemsByClaim(ctx, claimID)
}
