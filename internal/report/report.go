// Package report computes aggregate views over a confirmed record set.
// Everything here is a pure function of its input; ordering expectations
// match the gateway's List output (date descending, newest first).
package report

import (
	"github.com/shopspring/decimal"

	"github.com/expenselens/expenselens/internal/receipt"
)

// vatDivisor backs the inclusive-VAT fallback estimate applied to records
// with no stated tax: tax ≈ amount − amount/1.07. The rate is a deliberate
// approximation; reports depend on it staying exactly 1.07.
var vatDivisor = decimal.NewFromFloat(1.07)

// chartWindow is how many of the newest records the trend chart shows.
const chartWindow = 5

// Point is one bar of the per-merchant trend chart.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Summary bundles every aggregate the record list view needs.
type Summary struct {
	Count       int     `json:"count"`
	Total       float64 `json:"total"`
	TaxEstimate float64 `json:"tax_estimate"`
	Average     float64 `json:"average"`
	Currency    string  `json:"currency"`
	Symbol      string  `json:"symbol"`
	Chart       []Point `json:"chart"`
}

// Total sums the amount of every record.
func Total(records []*receipt.Record) float64 {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(decimal.NewFromFloat(r.Amount))
	}
	return sum.InexactFloat64()
}

// TaxFor returns the stated tax of a record, or the inclusive-VAT fallback
// estimate when the receipt carried no tax line.
func TaxFor(r *receipt.Record) float64 {
	if r.Tax != nil {
		return *r.Tax
	}
	amount := decimal.NewFromFloat(r.Amount)
	return amount.Sub(amount.Div(vatDivisor)).InexactFloat64()
}

// TaxEstimate sums TaxFor over all records.
func TaxEstimate(records []*receipt.Record) float64 {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(decimal.NewFromFloat(TaxFor(r)))
	}
	return sum.InexactFloat64()
}

// Average is the mean amount, zero for an empty record set.
func Average(records []*receipt.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	total := decimal.NewFromFloat(Total(records))
	return total.Div(decimal.NewFromInt(int64(len(records)))).InexactFloat64()
}

// ChartProjection takes the newest chartWindow records and reverses them so
// the chart reads left-to-right chronologically while the underlying list
// stays newest-first.
func ChartProjection(records []*receipt.Record) []Point {
	window := records
	if len(window) > chartWindow {
		window = window[:chartWindow]
	}

	points := make([]Point, 0, len(window))
	for i := len(window) - 1; i >= 0; i-- {
		points = append(points, Point{
			Label: window[i].Merchant,
			Value: window[i].Amount,
		})
	}
	return points
}

// DisplayCurrency returns the currency code used to present aggregates:
// the first record's code, or the fallback when the set is empty. No
// conversion happens between currencies.
func DisplayCurrency(records []*receipt.Record) string {
	if len(records) == 0 {
		return receipt.DefaultCurrency
	}
	return receipt.NormalizeCurrency(records[0].Currency)
}

// Summarize computes every aggregate in one pass-friendly bundle.
func Summarize(records []*receipt.Record) Summary {
	currency := DisplayCurrency(records)
	return Summary{
		Count:       len(records),
		Total:       Total(records),
		TaxEstimate: TaxEstimate(records),
		Average:     Average(records),
		Currency:    currency,
		Symbol:      receipt.CurrencySymbol(currency),
		Chart:       ChartProjection(records),
	}
}
