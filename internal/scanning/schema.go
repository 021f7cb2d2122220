package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/expenselens/expenselens/internal/receipt"
)

// fieldsJSONSchema is the fixed schema the model is asked to produce and the
// one its response is validated against. Everything but tax is required.
func fieldsJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"merchant": map[string]any{"type": "string"},
			"date":     map[string]any{"type": "string"},
			"amount":   map[string]any{"type": "number"},
			"tax":      map[string]any{"type": "number"},
			"currency": map[string]any{"type": "string"},
			"category": map[string]any{"type": "string"},
		},
		"required": []string{"merchant", "date", "amount", "currency", "category"},
	}
}

// compiledSchema validates sanitized model output locally before it is
// accepted as an extraction result.
var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	raw, err := json.Marshal(fieldsJSONSchema())
	if err != nil {
		panic(fmt.Sprintf("marshaling fields schema: %v", err))
	}
	schema, err := jsonschema.CompileString("fields.schema.json", string(raw))
	if err != nil {
		panic(fmt.Sprintf("compiling fields schema: %v", err))
	}
	return schema
}

// scanPrompt is the fixed instruction sent with every receipt image.
var scanPrompt = fmt.Sprintf(`You are analyzing a photographed paper receipt. Carefully read all text in the image and extract the following information:

1. **Merchant**: The store or business name, usually the largest text at the top of the receipt.

2. **Date**: The transaction or purchase date, converted to ISO 8601 format (YYYY-MM-DD).

3. **Amount**: The final total charged, including tax. Extract only the numeric value (e.g., 42.75).

4. **Tax**: The explicit tax, VAT, or GST line if the receipt shows one. Omit this field entirely if no tax line is printed.

5. **Currency**: The 3-letter ISO currency code. When no code is printed, infer it from currency symbols or locale hints on the receipt (language, address, tax terminology). Use one of: %s.

6. **Category**: The best fitting spending category. Choose from: %s. Use "Other" when none fits.

Return ONLY valid JSON in this exact format:
{
  "merchant": "Store Name",
  "date": "YYYY-MM-DD",
  "amount": 0.00,
  "tax": 0.00,
  "currency": "USD",
  "category": "Other"
}

Important:
- The amount and tax must be numbers (not strings)
- Omit "tax" when the receipt states no tax; never invent one
- If you cannot find merchant, date, or amount, use your best guess rather than leaving them out
- Do not include any text before or after the JSON
- Do not use markdown code blocks`,
	strings.Join(receipt.Currencies(), ", "),
	strings.Join(receipt.Categories(), ", "))
