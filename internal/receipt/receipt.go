package receipt

import (
	"fmt"
	"time"
)

// DateFormat is the calendar date layout used everywhere a receipt date
// appears: storage, wire, and extraction output.
const DateFormat = "2006-01-02"

// Record is one confirmed receipt. Records are immutable after creation;
// all editing happens on the transient review form before the record exists.
type Record struct {
	ID        string    `json:"id,omitempty"`
	Merchant  string    `json:"merchant"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Amount    float64   `json:"amount"`
	Tax       *float64  `json:"tax,omitempty"` // nil means the receipt did not state a tax line
	Currency  string    `json:"currency"`
	Category  string    `json:"category"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the invariants a record must satisfy before it may be
// persisted. Currency is not checked here: unknown codes are defaulted by
// the store rather than rejected.
func (r *Record) Validate() error {
	if r.Merchant == "" {
		return fmt.Errorf("merchant is required")
	}
	if r.Date == "" {
		return fmt.Errorf("date is required")
	}
	if _, err := time.Parse(DateFormat, r.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", r.Date, err)
	}
	if r.Amount < 0 {
		return fmt.Errorf("amount must not be negative, got %v", r.Amount)
	}
	if r.Tax != nil {
		if *r.Tax < 0 {
			return fmt.Errorf("tax must not be negative, got %v", *r.Tax)
		}
		if *r.Tax > r.Amount {
			return fmt.Errorf("tax %v exceeds amount %v", *r.Tax, r.Amount)
		}
	}
	return nil
}
