package models

import (
	"math"
	"time"
)

// Claim represents a single reimbursement claim covering a date range
// and one uploaded receipt. Items belong to exactly one claim and are
// removed with it.
type Claim struct {
	ClaimID         string    `json:"claim_id"`
	AliasName       string    `json:"alias_name,omitempty"`
	FromDate        time.Time `json:"from_date"`
	ToDate          time.Time `json:"to_date"`
	TotalAmount     float64   `json:"total_amount"`
	TotalCurrency   string    `json:"total_currency"`
	PaidAmount      *float64  `json:"paid_amount,omitempty"`
	PaidCurrency    string    `json:"paid_currency,omitempty"`
	ExpenseGroup    string    `json:"expense_group"`
	BusinessPurpose string    `json:"business_purpose"`
	ReceiptPath     string    `json:"receipt_path,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// EffectivePaidAmount returns the paid amount, falling back to the declared
// total when no separate paid amount was recorded.
func (c *Claim) EffectivePaidAmount() float64 {
	if c.PaidAmount != nil {
		return *c.PaidAmount
	}
	return c.TotalAmount
}

// EffectivePaidCurrency returns the paid currency, falling back to the
// declared total currency.
func (c *Claim) EffectivePaidCurrency() string {
	if c.PaidCurrency != "" {
		return c.PaidCurrency
	}
	return c.TotalCurrency
}

// HasReceipt reports whether a receipt file was recorded for the claim.
func (c *Claim) HasReceipt() bool {
	return c.ReceiptPath != ""
}

// ClaimItem represents one expense line within a claim.
type ClaimItem struct {
	ItemID        int64     `json:"item_id"`
	ClaimID       string    `json:"claim_id"`
	Description   string    `json:"description"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	PaidAmount    *float64  `json:"paid_amount,omitempty"`
	PaidCurrency  string    `json:"paid_currency,omitempty"`
	Justification string    `json:"justification,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ItemsTotal sums the item amounts to two decimal places.
func ItemsTotal(items []*ClaimItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Amount
	}
	return math.Round(total*100) / 100
}

// AmountsMatch checks the declared claim total against the sum of its item
// amounts. This is a soft validation surfaced as a warning to the user, not
// enforced anywhere.
func (c *Claim) AmountsMatch(items []*ClaimItem) bool {
	return math.Abs(c.TotalAmount-ItemsTotal(items)) < 0.01
}

// ExpenseGroups lists the finance-office expense categories a claim may use.
var ExpenseGroups = []string{
	"Airfare",
	"Books/Journals",
	"Computer",
	"Delivery/Courier/Postage",
	"Equipement",
	"Ferry/Train (Overseas)",
	"Furniture & Fixture",
	"General Consumables",
	"Hotel",
	"Lab Consumables/Electronic Components",
	"Meal",
	"Membership Fee",
	"Mobile Phone/Portable Electronic Device",
	"Others",
	"Patent Fee",
	"Publication/Submission Fee",
	"Registration/Conference/Visa Fee",
	"Rental Fee",
	"Service Fee",
}

// Currencies lists the currency codes accepted on claim and item forms.
var Currencies = []string{"HKD", "USD", "EUR", "RMB", "GBP", "JPY"}

// ValidExpenseGroup reports whether the group is one of the known categories.
func ValidExpenseGroup(group string) bool {
	for _, g := range ExpenseGroups {
		if g == group {
			return true
		}
	}
	return false
}

// ValidCurrency reports whether the code is one of the accepted currencies.
func ValidCurrency(code string) bool {
	for _, c := range Currencies {
		if c == code {
			return true
		}
	}
	return false
}
