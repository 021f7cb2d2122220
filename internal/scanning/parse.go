package scanning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/expenselens/expenselens/internal/receipt"
)

// parseFields turns a raw model response into Fields. It tolerates the usual
// model misbehavior (markdown fences, chatter around the JSON, numbers sent
// as strings) but rejects responses that still fail the fixed schema after
// sanitizing. now supplies the date fallback.
func parseFields(text string, now time.Time) (*Fields, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Keep only the JSON object: first { to last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	dropUnknownKeys(doc)
	sanitizeNumerics(doc)

	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("response does not match schema: %w", err)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling sanitized response: %w", err)
	}
	var fields Fields
	if err := json.Unmarshal(normalized, &fields); err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}

	normalizeFields(&fields, now)
	return &fields, nil
}

// dropUnknownKeys removes keys outside the fixed schema so a chatty model
// response is not rejected for extras we would ignore anyway.
func dropUnknownKeys(doc map[string]any) {
	known := map[string]bool{
		"merchant": true, "date": true, "amount": true,
		"tax": true, "currency": true, "category": true,
	}
	for k := range doc {
		if !known[k] {
			delete(doc, k)
		}
	}
}

// sanitizeNumerics coerces amount and tax into numbers. An unparsable
// amount becomes 0; an unparsable or null tax is dropped, meaning "not
// stated on the receipt".
func sanitizeNumerics(doc map[string]any) {
	doc["amount"] = coerceNumber(doc["amount"], 0)

	switch v := doc["tax"].(type) {
	case nil:
		delete(doc, "tax")
	case float64:
		// already a number
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			doc["tax"] = f
		} else {
			delete(doc, "tax")
		}
	default:
		delete(doc, "tax")
	}
}

func coerceNumber(v any, fallback float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return fallback
}

// normalizeFields applies the populated-field guarantees of the extraction
// contract: merchant/date/amount/currency/category always carry a value on
// success, defaulted when the model could not find them.
func normalizeFields(fields *Fields, now time.Time) {
	fields.Merchant = strings.TrimSpace(fields.Merchant)
	if fields.Merchant == "" {
		fields.Merchant = "Unknown Merchant"
	}

	fields.Date = normalizeDate(fields.Date, now)

	if fields.Amount < 0 {
		fields.Amount = 0
	}

	fields.Currency = receipt.NormalizeCurrency(fields.Currency)

	fields.Category = strings.TrimSpace(fields.Category)
	if fields.Category == "" {
		fields.Category = receipt.DefaultCategory
	}
}

// normalizeDate accepts the date formats models actually emit and converts
// them to YYYY-MM-DD, falling back to today when nothing parses.
func normalizeDate(date string, now time.Time) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return now.Format(receipt.DateFormat)
	}

	if d, err := time.Parse(receipt.DateFormat, date); err == nil {
		return d.Format(receipt.DateFormat)
	}

	formats := []string{
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
		"Jan 2, 2006",
		"2 Jan 2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, date); err == nil {
			return d.Format(receipt.DateFormat)
		}
	}
	return now.Format(receipt.DateFormat)
}
