package report

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/isdlab/reimburse/internal/models"
)

// ClaimSource is the read-only view of stored claims the assembler consumes.
type ClaimSource interface {
	AllClaims(ctx context.Context) ([]*models.Claim, error)
	ClaimsByMonth(ctx context.Context, year int, month int) ([]*models.Claim, error)
	ClaimsByIDs(ctx context.Context, ids []string) ([]*models.Claim, error)
	ItemsByClaim(ctx context.Context, claimID string) ([]*models.ClaimItem, error)
}

// Scope narrows a report to one month or an explicit claim set. The zero
// value covers the whole store. Month and ClaimIDs are mutually exclusive;
// ClaimIDs wins when both are set.
type Scope struct {
	Month    string
	ClaimIDs []string
}

// Artifact is a generated report ready to be served or archived.
type Artifact struct {
	Filename    string
	Content     []byte
	ContentType string
}

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv"
	contentTypeZIP  = "application/zip"
)

// Assembler builds report artifacts from stored claims: workbooks, CSV
// exports, and ZIP archives bundling reports with renamed receipt copies.
type Assembler struct {
	source ClaimSource
	filler *ExcelFiller
	logger *zap.Logger
}

func NewAssembler(source ClaimSource, filler *ExcelFiller, logger *zap.Logger) *Assembler {
	return &Assembler{
		source: source,
		filler: filler,
		logger: logger,
	}
}

// MonthOption is one reportable month offered to the UI.
type MonthOption struct {
	Selector string `json:"selector"`
	Label    string `json:"label"`
}

// AvailableMonths lists the months that have at least one line item,
// newest first.
func (a *Assembler) AvailableMonths(ctx context.Context) ([]MonthOption, error) {
	buckets, err := a.collect(ctx, Scope{})
	if err != nil {
		return nil, err
	}
	options := make([]MonthOption, 0, len(buckets))
	for i := len(buckets) - 1; i >= 0; i-- {
		options = append(options, MonthOption{
			Selector: buckets[i].Key.Selector(),
			Label:    buckets[i].Key.Label(),
		})
	}
	return options, nil
}

// ExcelReport renders the workbook for the scope.
func (a *Assembler) ExcelReport(ctx context.Context, scope Scope) (*Artifact, error) {
	buckets, err := a.collect(ctx, scope)
	if err != nil {
		return nil, err
	}
	name, err := scopedFilename(scope, "isd_reimbursement_report", ".xlsx")
	if err != nil {
		return nil, err
	}
	return a.excelArtifact(buckets, name)
}

// ItemsCSVReport exports the scope's line items as a single CSV.
func (a *Assembler) ItemsCSVReport(ctx context.Context, scope Scope) (*Artifact, error) {
	buckets, err := a.collect(ctx, scope)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, b := range buckets {
		entries = append(entries, b.Entries...)
	}
	content, err := ItemsCSV(entries)
	if err != nil {
		return nil, err
	}
	name, err := scopedFilename(scope, "isd_reimbursement_items", ".csv")
	if err != nil {
		return nil, err
	}
	return &Artifact{Filename: name, Content: content, ContentType: contentTypeCSV}, nil
}

// ClaimsCSVReport exports the claim-level ledger with aggregated item
// descriptions and justifications.
func (a *Assembler) ClaimsCSVReport(ctx context.Context, scope Scope) (*Artifact, error) {
	claims, itemsByClaim, err := a.loadClaims(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, ErrNothingToReport
	}
	content, err := ClaimsCSV(claims, itemsByClaim)
	if err != nil {
		return nil, err
	}
	return &Artifact{Filename: "financial_expense_combined.csv", Content: content, ContentType: contentTypeCSV}, nil
}

// ReceiptsArchive bundles the scope's receipts into a ZIP, renaming each
// copy to {claimID}_Attachment{NN}{ext}. Missing receipt files are skipped
// with a warning rather than failing the archive.
func (a *Assembler) ReceiptsArchive(ctx context.Context, scope Scope) (*Artifact, error) {
	claims, _, err := a.loadClaims(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, ErrNothingToReport
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := a.addReceipts(zw, claims, ""); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	name := "receipts_all.zip"
	if scope.Month != "" {
		key, err := ParseMonthSelector(scope.Month)
		if err != nil {
			return nil, err
		}
		name = fmt.Sprintf("receipts_%s.zip", key.FileToken())
	}
	return &Artifact{Filename: name, Content: buf.Bytes(), ContentType: contentTypeZIP}, nil
}

// ComprehensiveArchive bundles the scope's full workbook, per-month
// workbooks and item CSVs, the claims ledger, and every receipt into one
// ZIP.
func (a *Assembler) ComprehensiveArchive(ctx context.Context, scope Scope) (*Artifact, error) {
	buckets, err := a.collect(ctx, scope)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	full, err := a.excelArtifact(buckets, "isd_reimbursement_report.xlsx")
	if err != nil {
		zw.Close()
		return nil, err
	}
	if err := a.addArchiveMember(zw, "reports/"+full.Filename, full.Content); err != nil {
		zw.Close()
		return nil, err
	}

	seen := make(map[string]bool)
	var claims []*models.Claim
	for _, bucket := range buckets {
		monthly, err := a.excelArtifact([]MonthBucket{bucket},
			fmt.Sprintf("isd_reimbursement_%s.xlsx", bucket.Key.FileToken()))
		if err != nil {
			zw.Close()
			return nil, err
		}
		if err := a.addArchiveMember(zw, "reports/monthly/"+monthly.Filename, monthly.Content); err != nil {
			zw.Close()
			return nil, err
		}

		csvContent, err := ItemsCSV(bucket.Entries)
		if err != nil {
			zw.Close()
			return nil, err
		}
		csvName := fmt.Sprintf("reports/monthly/isd_reimbursement_%s.csv", bucket.Key.FileToken())
		if err := a.addArchiveMember(zw, csvName, csvContent); err != nil {
			zw.Close()
			return nil, err
		}

		for _, entry := range bucket.Entries {
			if !seen[entry.Claim.ClaimID] {
				seen[entry.Claim.ClaimID] = true
				claims = append(claims, entry.Claim)
			}
		}
	}

	ledger, err := a.ClaimsCSVReport(ctx, scope)
	if err != nil {
		zw.Close()
		return nil, err
	}
	if err := a.addArchiveMember(zw, "reports/"+ledger.Filename, ledger.Content); err != nil {
		zw.Close()
		return nil, err
	}

	count, err := a.addReceipts(zw, claims, "receipts/")
	if err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	a.logger.Info("Assembled comprehensive archive",
		zap.Int("months", len(buckets)),
		zap.Int("claims", len(claims)),
		zap.Int("receipts", count))

	return &Artifact{Filename: "comprehensive_report.zip", Content: buf.Bytes(), ContentType: contentTypeZIP}, nil
}

func (a *Assembler) excelArtifact(buckets []MonthBucket, filename string) (*Artifact, error) {
	content, err := a.filler.Render(buckets)
	if err != nil {
		return nil, err
	}
	return &Artifact{Filename: filename, Content: content, ContentType: contentTypeXLSX}, nil
}

// scopedFilename swaps the base for a month token when the scope names one
// month.
func scopedFilename(scope Scope, base, ext string) (string, error) {
	if scope.Month == "" {
		return base + ext, nil
	}
	key, err := ParseMonthSelector(scope.Month)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("isd_reimbursement_%s%s", key.FileToken(), ext), nil
}

// addReceipts copies each claim's receipt file into the archive under the
// given prefix. The attachment sequence only advances for files that exist.
func (a *Assembler) addReceipts(zw *zip.Writer, claims []*models.Claim, prefix string) (int, error) {
	seq := 0
	for _, claim := range claims {
		if !claim.HasReceipt() {
			continue
		}
		content, err := os.ReadFile(claim.ReceiptPath)
		if err != nil {
			a.logger.Warn("Skipping unreadable receipt file",
				zap.String("claim_id", claim.ClaimID),
				zap.String("path", claim.ReceiptPath),
				zap.Error(err))
			continue
		}
		seq++
		name := fmt.Sprintf("%s%s_Attachment%02d%s",
			prefix, claim.ClaimID, seq, filepath.Ext(claim.ReceiptPath))
		if err := a.addArchiveMember(zw, name, content); err != nil {
			return seq, err
		}
	}
	return seq, nil
}

func (a *Assembler) addArchiveMember(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create archive member %s: %w", name, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("failed to write archive member %s: %w", name, err)
	}
	return nil
}

// collect loads the scope's claims with their items and groups them by
// month. An empty result yields ErrNothingToReport.
func (a *Assembler) collect(ctx context.Context, scope Scope) ([]MonthBucket, error) {
	claims, itemsByClaim, err := a.loadClaims(ctx, scope)
	if err != nil {
		return nil, err
	}
	entries := joinEntries(claims, itemsByClaim)
	if len(entries) == 0 {
		return nil, ErrNothingToReport
	}
	return GroupByMonth(entries), nil
}

// loadClaims fetches the scope's claims together with each claim's items.
func (a *Assembler) loadClaims(ctx context.Context, scope Scope) ([]*models.Claim, map[string][]*models.ClaimItem, error) {
	var (
		claims []*models.Claim
		err    error
	)
	switch {
	case len(scope.ClaimIDs) > 0:
		claims, err = a.source.ClaimsByIDs(ctx, scope.ClaimIDs)
	case scope.Month != "":
		var key MonthKey
		key, err = ParseMonthSelector(scope.Month)
		if err != nil {
			return nil, nil, err
		}
		claims, err = a.source.ClaimsByMonth(ctx, key.Year, int(key.Month))
	default:
		claims, err = a.source.AllClaims(ctx)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load claims: %w", err)
	}

	itemsByClaim := make(map[string][]*models.ClaimItem, len(claims))
	for _, claim := range claims {
		items, err := a.source.ItemsByClaim(ctx, claim.ClaimID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load items for claim %s: %w", claim.ClaimID, err)
		}
		itemsByClaim[claim.ClaimID] = items
	}
	return claims, itemsByClaim, nil
}

func joinEntries(claims []*models.Claim, itemsByClaim map[string][]*models.ClaimItem) []Entry {
	var entries []Entry
	for _, claim := range claims {
		for _, item := range itemsByClaim[claim.ClaimID] {
			entries = append(entries, Entry{Claim: claim, Item: item})
		}
	}
	return entries
}
