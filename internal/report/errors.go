package report

import "errors"

// Engine errors surfaced to callers. Each generation call fails as a whole;
// no partial artifact is ever returned alongside an error.
var (
	// ErrInvalidMonthSelector indicates a malformed MM-YYYY selector.
	ErrInvalidMonthSelector = errors.New("invalid month/year selector")

	// ErrTemplateNotFound indicates the report template is missing on disk.
	ErrTemplateNotFound = errors.New("report template not found")

	// ErrNothingToReport indicates the requested scope matched no items or
	// claims. Callers decide whether that is an error for the user.
	ErrNothingToReport = errors.New("no claims or items to report")
)
