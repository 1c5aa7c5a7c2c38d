package report

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isdlab/reimburse/internal/models"
)

type fakeClaimSource struct {
	claims []*models.Claim
	items  map[string][]*models.ClaimItem
}

func (s *fakeClaimSource) AllClaims(ctx context.Context) ([]*models.Claim, error) {
	return s.claims, nil
}

func (s *fakeClaimSource) ClaimsByMonth(ctx context.Context, year, month int) ([]*models.Claim, error) {
	var out []*models.Claim
	for _, c := range s.claims {
		if c.FromDate.Year() == year && int(c.FromDate.Month()) == month {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeClaimSource) ClaimsByIDs(ctx context.Context, ids []string) ([]*models.Claim, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.Claim
	for _, c := range s.claims {
		if want[c.ClaimID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeClaimSource) ItemsByClaim(ctx context.Context, claimID string) ([]*models.ClaimItem, error) {
	return s.items[claimID], nil
}

func newTestAssembler(t *testing.T, source ClaimSource) *Assembler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.xlsx")
	require.NoError(t, WriteDefaultTemplate(path))
	filler, err := NewExcelFiller(path, testIdentity(), zap.NewNop())
	require.NoError(t, err)
	return NewAssembler(source, filler, zap.NewNop())
}

func seedSource(t *testing.T) *fakeClaimSource {
	t.Helper()
	receiptDir := t.TempDir()
	writeReceipt := func(name string) string {
		path := filepath.Join(receiptDir, name)
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644))
		return path
	}

	claim := func(id string, from time.Time, receipt string) *models.Claim {
		return &models.Claim{
			ClaimID:       id,
			FromDate:      from,
			ToDate:        from.AddDate(0, 0, 1),
			TotalAmount:   100,
			TotalCurrency: "HKD",
			ExpenseGroup:  "Meal",
			ReceiptPath:   receipt,
		}
	}
	may := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	june := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	source := &fakeClaimSource{
		claims: []*models.Claim{
			claim("claim-a", may, writeReceipt("a.pdf")),
			claim("claim-b", june, filepath.Join(receiptDir, "deleted.pdf")),
			claim("claim-c", june, writeReceipt("c.jpg")),
		},
		items: map[string][]*models.ClaimItem{
			"claim-a": {{ItemID: 1, ClaimID: "claim-a", Description: "Lunch", Amount: 100, Currency: "HKD", CreatedAt: may}},
			"claim-b": {{ItemID: 2, ClaimID: "claim-b", Description: "Dinner", Amount: 100, Currency: "HKD", CreatedAt: june}},
			"claim-c": {{ItemID: 3, ClaimID: "claim-c", Description: "Taxi", Amount: 100, Currency: "RMB", CreatedAt: june}},
		},
	}
	return source
}

func archiveNames(t *testing.T, content []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestAvailableMonths(t *testing.T) {
	a := newTestAssembler(t, seedSource(t))
	months, err := a.AvailableMonths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []MonthOption{
		{Selector: "06-2025", Label: "June 2025"},
		{Selector: "05-2025", Label: "May 2025"},
	}, months)
}

func TestExcelReports(t *testing.T) {
	a := newTestAssembler(t, seedSource(t))
	ctx := context.Background()

	t.Run("full report", func(t *testing.T) {
		artifact, err := a.ExcelReport(ctx, Scope{})
		require.NoError(t, err)
		assert.Equal(t, "isd_reimbursement_report.xlsx", artifact.Filename)
		assert.Equal(t, contentTypeXLSX, artifact.ContentType)
		assert.NotEmpty(t, artifact.Content)
	})

	t.Run("monthly report", func(t *testing.T) {
		artifact, err := a.ExcelReport(ctx, Scope{Month: "06-2025"})
		require.NoError(t, err)
		assert.Equal(t, "isd_reimbursement_06_2025.xlsx", artifact.Filename)
	})

	t.Run("claim id scoped report", func(t *testing.T) {
		artifact, err := a.ExcelReport(ctx, Scope{ClaimIDs: []string{"claim-a"}})
		require.NoError(t, err)
		assert.Equal(t, "isd_reimbursement_report.xlsx", artifact.Filename)
		assert.NotEmpty(t, artifact.Content)
	})

	t.Run("unknown claim ids", func(t *testing.T) {
		_, err := a.ExcelReport(ctx, Scope{ClaimIDs: []string{"missing"}})
		assert.ErrorIs(t, err, ErrNothingToReport)
	})

	t.Run("invalid selector", func(t *testing.T) {
		_, err := a.ExcelReport(ctx, Scope{Month: "2025-06"})
		assert.ErrorIs(t, err, ErrInvalidMonthSelector)
	})

	t.Run("month without items", func(t *testing.T) {
		_, err := a.ExcelReport(ctx, Scope{Month: "01-2020"})
		assert.ErrorIs(t, err, ErrNothingToReport)
	})
}

func TestCSVReports(t *testing.T) {
	a := newTestAssembler(t, seedSource(t))
	ctx := context.Background()

	t.Run("all items", func(t *testing.T) {
		artifact, err := a.ItemsCSVReport(ctx, Scope{})
		require.NoError(t, err)
		assert.Equal(t, "isd_reimbursement_items.csv", artifact.Filename)
		records := parseCSV(t, artifact.Content)
		assert.Len(t, records, 5)
	})

	t.Run("single month", func(t *testing.T) {
		artifact, err := a.ItemsCSVReport(ctx, Scope{Month: "06-2025"})
		require.NoError(t, err)
		assert.Equal(t, "isd_reimbursement_06_2025.csv", artifact.Filename)
		records := parseCSV(t, artifact.Content)
		assert.Len(t, records, 4)
	})

	t.Run("claims ledger", func(t *testing.T) {
		artifact, err := a.ClaimsCSVReport(ctx, Scope{})
		require.NoError(t, err)
		assert.Equal(t, "financial_expense_combined.csv", artifact.Filename)
		records := parseCSV(t, artifact.Content)
		assert.Len(t, records, 4)
	})

	t.Run("claim id scoped ledger", func(t *testing.T) {
		artifact, err := a.ClaimsCSVReport(ctx, Scope{ClaimIDs: []string{"claim-b", "claim-c"}})
		require.NoError(t, err)
		records := parseCSV(t, artifact.Content)
		assert.Len(t, records, 3)
	})
}

func TestReceiptsArchive(t *testing.T) {
	a := newTestAssembler(t, seedSource(t))
	ctx := context.Background()

	t.Run("missing receipt files are skipped", func(t *testing.T) {
		artifact, err := a.ReceiptsArchive(ctx, Scope{})
		require.NoError(t, err)
		assert.Equal(t, "receipts_all.zip", artifact.Filename)

		names := archiveNames(t, artifact.Content)
		assert.Equal(t, []string{
			"claim-a_Attachment01.pdf",
			"claim-c_Attachment02.jpg",
		}, names)
	})

	t.Run("month scoped", func(t *testing.T) {
		artifact, err := a.ReceiptsArchive(ctx, Scope{Month: "06-2025"})
		require.NoError(t, err)
		assert.Equal(t, "receipts_06_2025.zip", artifact.Filename)
		assert.Equal(t, []string{"claim-c_Attachment01.jpg"}, archiveNames(t, artifact.Content))
	})

	t.Run("claim id scoped", func(t *testing.T) {
		artifact, err := a.ReceiptsArchive(ctx, Scope{ClaimIDs: []string{"claim-a"}})
		require.NoError(t, err)
		assert.Equal(t, "receipts_all.zip", artifact.Filename)
		assert.Equal(t, []string{"claim-a_Attachment01.pdf"}, archiveNames(t, artifact.Content))
	})
}

func TestComprehensiveArchive(t *testing.T) {
	a := newTestAssembler(t, seedSource(t))
	artifact, err := a.ComprehensiveArchive(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, "comprehensive_report.zip", artifact.Filename)

	names := archiveNames(t, artifact.Content)
	assert.Contains(t, names, "reports/isd_reimbursement_report.xlsx")
	assert.Contains(t, names, "reports/monthly/isd_reimbursement_05_2025.xlsx")
	assert.Contains(t, names, "reports/monthly/isd_reimbursement_06_2025.xlsx")
	assert.Contains(t, names, "reports/monthly/isd_reimbursement_05_2025.csv")
	assert.Contains(t, names, "reports/monthly/isd_reimbursement_06_2025.csv")
	assert.Contains(t, names, "reports/financial_expense_combined.csv")
	assert.Contains(t, names, "receipts/claim-a_Attachment01.pdf")
	assert.Contains(t, names, "receipts/claim-c_Attachment02.jpg")
}

func TestEmptyStore(t *testing.T) {
	a := newTestAssembler(t, &fakeClaimSource{})
	ctx := context.Background()

	_, err := a.ExcelReport(ctx, Scope{})
	assert.ErrorIs(t, err, ErrNothingToReport)

	_, err = a.ClaimsCSVReport(ctx, Scope{})
	assert.ErrorIs(t, err, ErrNothingToReport)

	_, err = a.ReceiptsArchive(ctx, Scope{})
	assert.ErrorIs(t, err, ErrNothingToReport)
}
