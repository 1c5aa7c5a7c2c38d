package report

import (
	"fmt"
	"math"

	"github.com/isdlab/reimburse/internal/models"
)

// The template fixes two named currency columns; everything else lands in
// the catch-all column.
const (
	CurrencyHKD = "HKD"
	CurrencyRMB = "RMB"

	// genericOtherLabel is the catch-all column header when the item set
	// contains more than one distinct non-named currency.
	genericOtherLabel = "Others ($)"
)

// Entry is one expense line joined with its parent claim, the unit the
// engine renders.
type Entry struct {
	Claim *models.Claim
	Item  *models.ClaimItem
}

// CurrencyColumn identifies one of the template's three amount columns.
type CurrencyColumn int

const (
	ColumnHKD CurrencyColumn = iota
	ColumnRMB
	ColumnOther
)

// ClassifyCurrency maps a currency code onto its template column.
func ClassifyCurrency(code string) CurrencyColumn {
	switch code {
	case CurrencyHKD:
		return ColumnHKD
	case CurrencyRMB:
		return ColumnRMB
	default:
		return ColumnOther
	}
}

// OtherColumnLabel computes the catch-all column header for an item set.
// With exactly one distinct non-named currency the header names it, e.g.
// "Others (Specify:EUR)". With several, the generic label is kept and the
// amounts are still summed together: the originating currency code is not
// preserved in the catch-all total. That is a known limitation of the
// institutional form, kept as-is.
func OtherColumnLabel(entries []Entry) string {
	distinct := make(map[string]struct{})
	for _, e := range entries {
		if ClassifyCurrency(e.Item.Currency) == ColumnOther {
			distinct[e.Item.Currency] = struct{}{}
		}
	}

	if len(distinct) == 1 {
		for code := range distinct {
			return fmt.Sprintf("Others (Specify:%s)", code)
		}
	}
	return genericOtherLabel
}

// ColumnTotals accumulates running per-column sums. Reset at the start of
// every region.
type ColumnTotals struct {
	HKD   float64
	RMB   float64
	Other float64
}

// Add classifies the amount and adds it to the matching column total.
func (t *ColumnTotals) Add(currency string, amount float64) {
	switch ClassifyCurrency(currency) {
	case ColumnHKD:
		t.HKD += amount
	case ColumnRMB:
		t.RMB += amount
	case ColumnOther:
		t.Other += amount
	}
}

// Reset clears all column totals.
func (t *ColumnTotals) Reset() {
	*t = ColumnTotals{}
}

// Rounded returns the totals rounded to two decimal places.
func (t ColumnTotals) Rounded() ColumnTotals {
	round := func(v float64) float64 { return math.Round(v*100) / 100 }
	return ColumnTotals{HKD: round(t.HKD), RMB: round(t.RMB), Other: round(t.Other)}
}
