package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Template layout of the institutional reimbursement form. The workbook
// ships with two pre-built month regions; the filler grows and appends
// regions from there.
const (
	SheetName = "Sheet1"

	// Claimant block: labels in column B/E, values in column C/F.
	cellFormNumber = "C3"
	cellClaimant   = "C4"
	cellStaffID    = "C5"
	cellEmail      = "C6"
	cellProject    = "F4"
	cellSupervisor = "F5"

	// Data table columns.
	colOrder       = "B"
	colDate        = "C"
	colParticulars = "D"
	colHKD         = "E"
	colRMB         = "F"
	colOther       = "G"
	colReceipt     = "H"

	// firstClearCol..lastClearCol is the full column span wiped when a
	// pre-built region goes unused.
	firstClearCol = "A"
	lastClearCol  = "H"

	periodLabel = "Period:"
	totalLabel  = "Total:"

	// Each pre-built region holds this many data rows.
	builtinCapacity = 6
)

// renderColumns are the columns the row renderer writes and styles.
var renderColumns = []string{colOrder, colDate, colParticulars, colHKD, colRMB, colOther, colReceipt}

// headerLabels are the canonical column headers of the first region. The
// catch-all header is relabeled per item set, see OtherColumnLabel.
var headerLabels = map[string]string{
	colOrder:       "Receipt Order",
	colDate:        "Payment Date",
	colParticulars: "Particulars",
	colHKD:         "HKD ($)",
	colRMB:         "RMB ($)",
	colOther:       genericOtherLabel,
	colReceipt:     "Receipt Attached?",
}

// builtinRegions returns the two pre-built regions at their template
// positions: period row, header row, six data rows, totals row, separated
// by one spacing row.
func builtinRegions() []Region {
	return []Region{
		{PeriodRow: 10, HeaderRow: 11, DataStart: 12, DataEnd: 17},
		{PeriodRow: 20, HeaderRow: 21, DataStart: 22, DataEnd: 27},
	}
}

// WriteDefaultTemplate writes the canonical report template to path. The
// generated workbook matches the layout the filler expects, including the
// sample rows that exercise the stale-data clearing path.
func WriteDefaultTemplate(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	thin := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}
	left := &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true}

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return fmt.Errorf("failed to create title style: %w", err)
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create label style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Border:    thin,
		Alignment: center,
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	centerStyle, err := f.NewStyle(&excelize.Style{Border: thin, Alignment: center})
	if err != nil {
		return fmt.Errorf("failed to create cell style: %w", err)
	}
	leftStyle, err := f.NewStyle(&excelize.Style{Border: thin, Alignment: left})
	if err != nil {
		return fmt.Errorf("failed to create cell style: %w", err)
	}
	// NumFmt 4 is the builtin "#,##0.00" format.
	amountStyle, err := f.NewStyle(&excelize.Style{Border: thin, Alignment: center, NumFmt: 4})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	setCell := func(cell string, value interface{}, style int) error {
		if err := f.SetCellValue(SheetName, cell, value); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
		if style != 0 {
			if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
				return fmt.Errorf("failed to style cell %s: %w", cell, err)
			}
		}
		return nil
	}

	// Claimant block.
	for cell, value := range map[string]string{
		"B2": "ISD Reimbursement Form",
		"B3": "E-Form No.:",
		"B4": "Claimant:",
		"B5": "Student/Staff ID:",
		"B6": "Email:",
		"E4": "Project No.:",
		"E5": "Supervisor:",
	} {
		style := labelStyle
		if cell == "B2" {
			style = titleStyle
		}
		if err := setCell(cell, value, style); err != nil {
			return err
		}
	}

	for i, region := range builtinRegions() {
		if err := setCell(fmt.Sprintf("%s%d", colOrder, region.PeriodRow), periodLabel, labelStyle); err != nil {
			return err
		}
		for _, col := range renderColumns {
			if err := setCell(fmt.Sprintf("%s%d", col, region.HeaderRow), headerLabels[col], headerStyle); err != nil {
				return err
			}
		}
		for row := region.DataStart; row <= region.DataEnd; row++ {
			for _, col := range renderColumns {
				cell := fmt.Sprintf("%s%d", col, row)
				style := centerStyle
				switch col {
				case colParticulars:
					style = leftStyle
				case colHKD, colRMB, colOther:
					style = amountStyle
				}
				if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
					return fmt.Errorf("failed to style cell %s: %w", cell, err)
				}
			}
		}
		totals := region.TotalsRow()
		for _, col := range renderColumns {
			cell := fmt.Sprintf("%s%d", col, totals)
			style := centerStyle
			if col == colHKD || col == colRMB || col == colOther {
				style = amountStyle
			}
			if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
				return fmt.Errorf("failed to style cell %s: %w", cell, err)
			}
		}
		if err := setCell(fmt.Sprintf("%s%d", colParticulars, totals), totalLabel, leftStyle); err != nil {
			return err
		}

		if err := writeSampleRows(f, i, region); err != nil {
			return err
		}
	}

	widths := map[string]float64{"A": 2, "B": 13, "C": 14, "D": 42, "E": 13, "F": 13, "G": 18, "H": 16}
	for col, width := range widths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// writeSampleRows fills a pre-built region with the example content the
// institutional form ships with. The filler overwrites or clears it.
func writeSampleRows(f *excelize.File, regionIdx int, region Region) error {
	type sample struct {
		col   string
		value interface{}
	}
	rows := [][]sample{
		{
			{colOrder, 1}, {colDate, "01-05-2025"},
			{colParticulars, "Sample - conference registration fee"},
			{colHKD, 1200.00}, {colReceipt, "Yes"},
		},
		{
			{colOrder, 2}, {colDate, "03-05-2025"},
			{colParticulars, "Sample - taxi to airport"},
			{colRMB, 85.50}, {colReceipt, "No"},
		},
	}
	periodValue := "May 2025"
	if regionIdx == 1 {
		rows = [][]sample{
			{
				{colOrder, 1}, {colDate, "02-06-2025"},
				{colParticulars, "Sample - lab consumables"},
				{colOther, 64.00}, {colReceipt, "Yes"},
			},
		}
		periodValue = "June 2025"
	}

	if err := f.SetCellValue(SheetName, fmt.Sprintf("%s%d", colDate, region.PeriodRow), periodValue); err != nil {
		return fmt.Errorf("failed to set sample period: %w", err)
	}
	for i, row := range rows {
		for _, s := range row {
			cell := fmt.Sprintf("%s%d", s.col, region.DataStart+i)
			if err := f.SetCellValue(SheetName, cell, s.value); err != nil {
				return fmt.Errorf("failed to set sample cell %s: %w", cell, err)
			}
		}
	}
	return nil
}
