// Package scanning sends captured receipt images to a vision-capable
// extraction model and turns its answer into structured fields. The public
// contract never fails: every problem on the way to the model and back is
// collapsed into a failed Outcome the caller can present as an empty form.
package scanning

import "context"

// Fields is the model's best-effort structured read of one receipt image.
// On a successful extraction every field except Tax is populated, defaulted
// by the model (or by lenient parsing) when the receipt did not show it.
type Fields struct {
	Merchant string   `json:"merchant"`
	Date     string   `json:"date"` // YYYY-MM-DD
	Amount   float64  `json:"amount"`
	Tax      *float64 `json:"tax,omitempty"` // nil when the receipt states no tax
	Currency string   `json:"currency"`
	Category string   `json:"category"`
}

// Outcome is the result of one extraction call. Exactly one of the two
// shapes occurs: Fields set and Reason empty, or Fields nil and Reason
// describing the collapsed failure.
type Outcome struct {
	Fields *Fields
	Reason string
}

// OK reports whether the extraction produced usable fields.
func (o Outcome) OK() bool {
	return o.Fields != nil
}

// Ok wraps successful extraction fields.
func Ok(fields *Fields) Outcome {
	return Outcome{Fields: fields}
}

// Failed builds the no-result outcome.
func Failed(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Backend is one way of reaching a vision model. It receives a normalized
// PNG and returns the model's raw text response.
type Backend interface {
	// Complete makes exactly one model call for the given image.
	Complete(ctx context.Context, png []byte) (string, error)
	// Close releases the backend's resources.
	Close() error
}
