package report

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ClaimantIdentity holds the fixed claimant block values written into the
// top of every generated form.
type ClaimantIdentity struct {
	FormNumber    string
	Name          string
	StaffID       string
	Email         string
	ProjectNumber string
	Supervisor    string
}

// ExcelFiller projects month buckets onto the report template: it consumes
// the two pre-built regions first, grows them row by row when a month
// overflows their capacity, synthesizes new regions once the pre-built ones
// are used up, and clears whatever pre-built scaffolding no month claimed.
type ExcelFiller struct {
	templatePath string
	identity     ClaimantIdentity
	logger       *zap.Logger
}

// NewExcelFiller creates a filler over the given template file.
func NewExcelFiller(templatePath string, identity ClaimantIdentity, logger *zap.Logger) (*ExcelFiller, error) {
	if _, err := os.Stat(templatePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templatePath)
	}
	return &ExcelFiller{
		templatePath: templatePath,
		identity:     identity,
		logger:       logger,
	}, nil
}

// styleSnapshot carries the per-column styles captured once from the
// template's first data row, before any mutation. Every rendered data row
// reuses them verbatim; totals rows use the bold variants. This keeps the
// output visually uniform no matter how many rows are inserted.
type styleSnapshot struct {
	data   map[string]int
	totals map[string]int
	header int
	period int
}

// Render projects the buckets onto a fresh copy of the template and returns
// the workbook bytes. Buckets must be in chronological order, as produced
// by GroupByMonth.
func (ef *ExcelFiller) Render(buckets []MonthBucket) ([]byte, error) {
	f, err := excelize.OpenFile(ef.templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open template %s: %w", ef.templatePath, err)
	}
	defer f.Close()

	regions := builtinRegions()
	preBuilt := len(regions)

	snapshot, err := ef.captureStyles(f, regions[0])
	if err != nil {
		return nil, err
	}

	if err := ef.fillClaimantBlock(f); err != nil {
		return nil, err
	}

	var all []Entry
	for _, b := range buckets {
		all = append(all, b.Entries...)
	}
	otherLabel := OtherColumnLabel(all)

	for i, bucket := range buckets {
		if i < preBuilt {
			regions, err = ef.growBuiltinRegion(f, regions, i, len(bucket.Entries))
		} else {
			regions, err = ef.synthesizeRegion(f, regions, snapshot, len(bucket.Entries))
		}
		if err != nil {
			return nil, err
		}

		region := regions[i]
		if err := ef.setCellValue(f, colDate, region.PeriodRow, bucket.Key.Label()); err != nil {
			return nil, err
		}
		if err := ef.setCellValue(f, colOther, region.HeaderRow, otherLabel); err != nil {
			return nil, err
		}
		if err := ef.renderRegion(f, region, bucket, snapshot); err != nil {
			return nil, err
		}
	}

	// Pre-built regions no month claimed still carry template sample data;
	// wipe their full row span so none of it reaches the output.
	for i := len(buckets); i < preBuilt; i++ {
		if err := ef.clearRegion(f, regions[i]); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	ef.logger.Debug("Rendered report workbook",
		zap.Int("months", len(buckets)),
		zap.Int("items", len(all)),
		zap.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

// growBuiltinRegion assigns a bucket to the pre-built region at idx,
// inserting sheet rows when the bucket exceeds the region's capacity. The
// marker shift for every later region is applied through insertRows in one
// step before anything else touches the sheet.
func (ef *ExcelFiller) growBuiltinRegion(f *excelize.File, regions []Region, idx, rowsNeeded int) ([]Region, error) {
	region := regions[idx]
	if rowsNeeded <= region.Capacity() {
		return regions, nil
	}

	extra := rowsNeeded - region.Capacity()
	if err := f.InsertRows(SheetName, region.DataEnd+1, extra); err != nil {
		return nil, fmt.Errorf("failed to insert %d rows: %w", extra, err)
	}

	ef.logger.Debug("Expanded pre-built region",
		zap.Int("region", idx),
		zap.Int("inserted_rows", extra))

	return insertRows(regions, idx, extra), nil
}

// synthesizeRegion appends a new region after the last one: a spacing row,
// a period row, a header row copied from the first region, the data block,
// a totals row, and a trailing spacing row.
func (ef *ExcelFiller) synthesizeRegion(f *excelize.File, regions []Region, snapshot *styleSnapshot, rowsNeeded int) ([]Region, error) {
	prev := regions[len(regions)-1]
	insertAt := prev.TotalsRow() + 1
	total := rowsNeeded + 5 // spacing + period + header + data + totals + spacing

	if err := f.InsertRows(SheetName, insertAt, total); err != nil {
		return nil, fmt.Errorf("failed to insert %d rows: %w", total, err)
	}

	region := Region{
		PeriodRow: insertAt + 1,
		HeaderRow: insertAt + 2,
		DataStart: insertAt + 3,
		DataEnd:   insertAt + 3 + rowsNeeded - 1,
	}

	if err := ef.setCellValue(f, colOrder, region.PeriodRow, periodLabel); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(SheetName, fmt.Sprintf("%s%d", colOrder, region.PeriodRow),
		fmt.Sprintf("%s%d", colOrder, region.PeriodRow), snapshot.period); err != nil {
		return nil, fmt.Errorf("failed to style period row: %w", err)
	}

	// The first region's header row holds the canonical column headers.
	for _, col := range renderColumns {
		value, err := f.GetCellValue(SheetName, fmt.Sprintf("%s%d", col, regions[0].HeaderRow))
		if err != nil {
			return nil, fmt.Errorf("failed to read header cell: %w", err)
		}
		cell := fmt.Sprintf("%s%d", col, region.HeaderRow)
		if err := f.SetCellValue(SheetName, cell, value); err != nil {
			return nil, fmt.Errorf("failed to copy header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, snapshot.header); err != nil {
			return nil, fmt.Errorf("failed to style header cell %s: %w", cell, err)
		}
	}

	ef.logger.Debug("Synthesized region",
		zap.Int("period_row", region.PeriodRow),
		zap.Int("data_rows", rowsNeeded))

	return append(regions, region), nil
}

// renderRegion writes one data row per entry plus the totals row. Column
// totals reset at the start of the region and accumulate while rendering.
func (ef *ExcelFiller) renderRegion(f *excelize.File, region Region, bucket MonthBucket, snapshot *styleSnapshot) error {
	var totals ColumnTotals
	totals.Reset()

	for i, entry := range bucket.Entries {
		row := region.DataStart + i
		for _, col := range renderColumns {
			cell := fmt.Sprintf("%s%d", col, row)
			if err := f.SetCellStyle(SheetName, cell, cell, snapshot.data[col]); err != nil {
				return fmt.Errorf("failed to style cell %s: %w", cell, err)
			}
		}

		if err := ef.setCellValue(f, colOrder, row, i+1); err != nil {
			return err
		}
		if err := ef.setCellValue(f, colDate, row, entry.Claim.FromDate.Format("02-01-2006")); err != nil {
			return err
		}
		if err := ef.setCellValue(f, colParticulars, row, entry.Item.Description); err != nil {
			return err
		}

		amountCol := colHKD
		switch ClassifyCurrency(entry.Item.Currency) {
		case ColumnRMB:
			amountCol = colRMB
		case ColumnOther:
			amountCol = colOther
		}
		if err := ef.setCellValue(f, amountCol, row, entry.Item.Amount); err != nil {
			return err
		}
		totals.Add(entry.Item.Currency, entry.Item.Amount)

		receipt := "No"
		if entry.Claim.HasReceipt() {
			receipt = "Yes"
		}
		if err := ef.setCellValue(f, colReceipt, row, receipt); err != nil {
			return err
		}
	}

	// A month smaller than the region's capacity leaves template sample
	// rows below it; blank their values, keeping the cell styles.
	for row := region.DataStart + len(bucket.Entries); row <= region.DataEnd; row++ {
		for _, col := range renderColumns {
			if err := f.SetCellValue(SheetName, fmt.Sprintf("%s%d", col, row), nil); err != nil {
				return fmt.Errorf("failed to clear cell %s%d: %w", col, row, err)
			}
		}
	}

	return ef.renderTotalsRow(f, region, totals.Rounded(), snapshot)
}

// renderTotalsRow writes the bold totals row. A column sum is only rendered
// when strictly positive; zero stays blank rather than showing "0.00".
func (ef *ExcelFiller) renderTotalsRow(f *excelize.File, region Region, totals ColumnTotals, snapshot *styleSnapshot) error {
	row := region.TotalsRow()
	for _, col := range renderColumns {
		cell := fmt.Sprintf("%s%d", col, row)
		if err := f.SetCellStyle(SheetName, cell, cell, snapshot.totals[col]); err != nil {
			return fmt.Errorf("failed to style cell %s: %w", cell, err)
		}
	}

	if err := ef.setCellValue(f, colParticulars, row, totalLabel); err != nil {
		return err
	}
	for col, sum := range map[string]float64{colHKD: totals.HKD, colRMB: totals.RMB, colOther: totals.Other} {
		if sum > 0 {
			if err := ef.setCellValue(f, col, row, sum); err != nil {
				return err
			}
		}
	}
	return nil
}

// clearRegion blanks every cell of the region's full row span across all
// template columns.
func (ef *ExcelFiller) clearRegion(f *excelize.File, region Region) error {
	cols := columnSpan(firstClearCol, lastClearCol)
	for row := region.PeriodRow; row <= region.TotalsRow(); row++ {
		for _, col := range cols {
			cell := fmt.Sprintf("%s%d", col, row)
			if err := f.SetCellValue(SheetName, cell, nil); err != nil {
				return fmt.Errorf("failed to clear cell %s: %w", cell, err)
			}
		}
	}
	return nil
}

// captureStyles snapshots the per-column styles from the template's first
// data row and header/period rows, and derives the bold totals variants.
func (ef *ExcelFiller) captureStyles(f *excelize.File, template Region) (*styleSnapshot, error) {
	snapshot := &styleSnapshot{
		data:   make(map[string]int),
		totals: make(map[string]int),
	}

	for _, col := range renderColumns {
		dataID, err := f.GetCellStyle(SheetName, fmt.Sprintf("%s%d", col, template.DataStart))
		if err != nil {
			return nil, fmt.Errorf("failed to read data-row style: %w", err)
		}
		snapshot.data[col] = dataID

		style, err := f.GetStyle(dataID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve style %d: %w", dataID, err)
		}
		if style.Font == nil {
			style.Font = &excelize.Font{}
		}
		style.Font.Bold = true
		boldID, err := f.NewStyle(style)
		if err != nil {
			return nil, fmt.Errorf("failed to create totals style: %w", err)
		}
		snapshot.totals[col] = boldID
	}

	headerID, err := f.GetCellStyle(SheetName, fmt.Sprintf("%s%d", colOrder, template.HeaderRow))
	if err != nil {
		return nil, fmt.Errorf("failed to read header style: %w", err)
	}
	snapshot.header = headerID

	periodID, err := f.GetCellStyle(SheetName, fmt.Sprintf("%s%d", colOrder, template.PeriodRow))
	if err != nil {
		return nil, fmt.Errorf("failed to read period style: %w", err)
	}
	snapshot.period = periodID

	return snapshot, nil
}

// fillClaimantBlock writes the fixed identity values into the form header.
func (ef *ExcelFiller) fillClaimantBlock(f *excelize.File) error {
	for cell, value := range map[string]string{
		cellFormNumber: ef.identity.FormNumber,
		cellClaimant:   ef.identity.Name,
		cellStaffID:    ef.identity.StaffID,
		cellEmail:      ef.identity.Email,
		cellProject:    ef.identity.ProjectNumber,
		cellSupervisor: ef.identity.Supervisor,
	} {
		if value == "" {
			continue
		}
		if err := f.SetCellValue(SheetName, cell, value); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}

func (ef *ExcelFiller) setCellValue(f *excelize.File, col string, row int, value interface{}) error {
	cell := fmt.Sprintf("%s%d", col, row)
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}

// columnSpan expands an inclusive column range like A..H into letters.
func columnSpan(from, to string) []string {
	start, _ := excelize.ColumnNameToNumber(from)
	end, _ := excelize.ColumnNameToNumber(to)
	cols := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		name, _ := excelize.ColumnNumberToName(i)
		cols = append(cols, name)
	}
	return cols
}
