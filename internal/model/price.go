package model

import "strings"

// PriceFinding is a single price signal extracted from one source.
type PriceFinding struct {
	Label     string `json:"label"`
	PriceText string `json:"price_text"`
}

// String renders the finding as "label: price_text". Two findings are
// duplicates when their rendered strings are equal.
func (f PriceFinding) String() string {
	return f.Label + ": " + f.PriceText
}

// PriceReport is the deduplicated, ordered summary of findings for one
// subject. Entries keep first-seen order.
type PriceReport struct {
	Subject string   `json:"subject"`
	Entries []string `json:"entries"`
	Found   bool     `json:"found"`
}

// Text renders the report as shown to the user and to the model.
func (r PriceReport) Text() string {
	if !r.Found {
		return NotFoundText(r.Subject)
	}
	return "Found prices for '" + r.Subject + "':\n" + strings.Join(r.Entries, "\n")
}

// NotFoundText is the fallback shown when no source produced a price.
func NotFoundText(subject string) string {
	return "I couldn't find real-time price information for '" + subject + "'. Prices can change quickly online!"
}
