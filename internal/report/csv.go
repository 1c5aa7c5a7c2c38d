package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/isdlab/reimburse/internal/models"
)

// ItemsCSV renders one row per line item in the given entries, mirroring the
// spreadsheet columns, followed by a TOTAL row. The catch-all column header
// carries the same relabeling as the workbook.
func ItemsCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"Receipt Order",
		"Payment Date",
		"Particulars",
		"HKD ($)",
		"RMB ($)",
		OtherColumnLabel(entries),
		"Receipt Attached?",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	var totals ColumnTotals
	for i, entry := range entries {
		record := []string{
			strconv.Itoa(i + 1),
			entry.Claim.FromDate.Format("02-01-2006"),
			entry.Item.Description,
			"",
			"",
			"",
			"No",
		}
		if entry.Claim.HasReceipt() {
			record[6] = "Yes"
		}

		amount := formatAmount(entry.Item.Amount)
		switch ClassifyCurrency(entry.Item.Currency) {
		case ColumnHKD:
			record[3] = amount
		case ColumnRMB:
			record[4] = amount
		case ColumnOther:
			record[5] = amount
		}
		totals.Add(entry.Item.Currency, entry.Item.Amount)

		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	sums := totals.Rounded()
	totalRecord := []string{"", "", "TOTAL", "", "", "", ""}
	if sums.HKD > 0 {
		totalRecord[3] = formatAmount(sums.HKD)
	}
	if sums.RMB > 0 {
		totalRecord[4] = formatAmount(sums.RMB)
	}
	if sums.Other > 0 {
		totalRecord[5] = formatAmount(sums.Other)
	}
	if err := w.Write(totalRecord); err != nil {
		return nil, fmt.Errorf("failed to write csv totals row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ClaimsCSV renders one row per claim across all months, aggregating the
// claim's item descriptions and justifications into single fields.
func ClaimsCSV(claims []*models.Claim, itemsByClaim map[string][]*models.ClaimItem) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"Incurred Date From",
		"Incurred Date To",
		"Description",
		"Paid Currency",
		"Paid Total Amount",
		"Expense Group",
		"Alias Name",
		"Business Purpose",
		"Justifications",
		"UUID",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, claim := range claims {
		items := itemsByClaim[claim.ClaimID]

		var descriptions, justifications []string
		for _, item := range items {
			if item.Description != "" {
				descriptions = append(descriptions, item.Description)
			}
			if item.Justification != "" {
				justifications = append(justifications, item.Justification)
			}
		}

		record := []string{
			claim.FromDate.Format("02-01-2006"),
			claim.ToDate.Format("02-01-2006"),
			strings.Join(descriptions, "; "),
			claim.EffectivePaidCurrency(),
			formatAmount(claim.EffectivePaidAmount()),
			claim.ExpenseGroup,
			claim.AliasName,
			claim.BusinessPurpose,
			strings.Join(justifications, "; "),
			claim.ClaimID,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
