package report

// Region is a contiguous row range in the output sheet holding one month's
// rendered data: a period-label row, a column-header row, a variable-length
// data block, and a totals row directly after the data block. Regions are
// ordered; region N's rows always lie strictly before region N+1's rows.
type Region struct {
	PeriodRow int
	HeaderRow int
	DataStart int
	DataEnd   int
}

// TotalsRow is the row directly after the data block.
func (r Region) TotalsRow() int {
	return r.DataEnd + 1
}

// Capacity is the number of data rows the region currently holds.
func (r Region) Capacity() int {
	return r.DataEnd - r.DataStart + 1
}

// shifted returns the region with every marker moved down by n rows.
func (r Region) shifted(n int) Region {
	return Region{
		PeriodRow: r.PeriodRow + n,
		HeaderRow: r.HeaderRow + n,
		DataStart: r.DataStart + n,
		DataEnd:   r.DataEnd + n,
	}
}

// insertRows records the insertion of count blank rows after region
// afterIdx's data block: that region's data block grows by count, and every
// later region's markers shift down by count. The input slice is not
// mutated; the returned slice reflects all marker updates at once, so a
// caller can never observe a partially shifted region list.
func insertRows(regions []Region, afterIdx, count int) []Region {
	out := make([]Region, len(regions))
	for i, r := range regions {
		switch {
		case i < afterIdx:
			out[i] = r
		case i == afterIdx:
			r.DataEnd += count
			out[i] = r
		default:
			out[i] = r.shifted(count)
		}
	}
	return out
}
