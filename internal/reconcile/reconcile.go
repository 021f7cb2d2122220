// Package reconcile merges extraction output, defaults, and user edits into
// a record candidate. It is pure merge logic: no I/O, nothing here rejects
// input — validation is the persistence gateway's job.
package reconcile

import (
	"time"

	"github.com/expenselens/expenselens/internal/receipt"
	"github.com/expenselens/expenselens/internal/scanning"
)

// Defaults supplies the fallback values a review form starts from when
// extraction produced nothing for a field.
type Defaults struct {
	Currency string
	Category string
	Now      func() time.Time
}

// StandardDefaults returns the configured fallbacks used in production.
func StandardDefaults() Defaults {
	return Defaults{
		Currency: receipt.DefaultCurrency,
		Category: receipt.DefaultCategory,
		Now:      time.Now,
	}
}

// FormState is the transient, directly editable review form. Users mutate
// fields one by one; no per-field validation blocks editing. Tax is a
// pointer so "the receipt states no tax" survives the round trip into the
// persisted record.
type FormState struct {
	Merchant string
	Date     string
	Amount   float64
	Tax      *float64
	Currency string
	Category string
}

// TaxValue returns the form's tax for display, zero when none is stated.
func (f *FormState) TaxValue() float64 {
	if f.Tax == nil {
		return 0
	}
	return *f.Tax
}

// SetTax sets an explicit tax value on the form.
func (f *FormState) SetTax(tax float64) {
	f.Tax = &tax
}

// ClearTax marks the form as having no stated tax.
func (f *FormState) ClearTax() {
	f.Tax = nil
}

// Seed builds the review form from an extraction outcome. A failed outcome
// yields an empty form with defaults; a successful one is copied verbatim —
// numeric coercion already happened during extraction parsing.
func Seed(outcome scanning.Outcome, defaults Defaults) *FormState {
	if !outcome.OK() {
		return &FormState{
			Merchant: "",
			Date:     defaults.Now().Format(receipt.DateFormat),
			Amount:   0,
			Tax:      nil,
			Currency: defaults.Currency,
			Category: defaults.Category,
		}
	}

	fields := outcome.Fields
	form := &FormState{
		Merchant: fields.Merchant,
		Date:     fields.Date,
		Amount:   fields.Amount,
		Currency: fields.Currency,
		Category: fields.Category,
	}
	if fields.Tax != nil {
		tax := *fields.Tax
		form.Tax = &tax
	}
	return form
}

// Finalize attaches the captured image to the form and produces the record
// candidate handed to the persistence gateway. This is the only point where
// the transient form becomes persistable; the gateway assigns id and
// created_at and enforces the invariants.
func Finalize(form *FormState, imageURI string) *receipt.Record {
	record := &receipt.Record{
		Merchant: form.Merchant,
		Date:     form.Date,
		Amount:   form.Amount,
		Currency: form.Currency,
		Category: form.Category,
		ImageURL: imageURI,
	}
	if form.Tax != nil {
		tax := *form.Tax
		record.Tax = &tax
	}
	return record
}
