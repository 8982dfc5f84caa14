package model

import "strings"

// Severity is the two-tier issue taxonomy.
type Severity string

const (
	// SeverityBlock excludes the affected unit (offer, product or line) and
	// marks the enclosing result blocked.
	SeverityBlock Severity = "BLOCK"
	// SeverityWarning is informational and preserved in output.
	SeverityWarning Severity = "WARNING"
)

// Issue is a structured, expected domain condition. Issues are never raised
// as Go errors.
type Issue struct {
	Severity      Severity       `json:"severity"`
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	OfferID       string         `json:"offer_id,omitempty"`
	ProductID     string         `json:"product_id,omitempty"`
	LineID        string         `json:"line_id,omitempty"`
	RecipeID      string         `json:"recipe_id,omitempty"`
	ChosenOfferID string         `json:"chosen_offer_id,omitempty"`
	AgeDays       *float64       `json:"age_days,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// Block creates a hard-block issue.
func Block(code, message string) Issue {
	return Issue{Severity: SeverityBlock, Code: code, Message: message}
}

// Warning creates a warning issue.
func Warning(code, message string) Issue {
	return Issue{Severity: SeverityWarning, Code: code, Message: message}
}

// WithOffer sets the offer id.
func (i Issue) WithOffer(id string) Issue {
	i.OfferID = id
	return i
}

// WithProduct sets the product id.
func (i Issue) WithProduct(id string) Issue {
	i.ProductID = id
	return i
}

// WithLine sets the recipe line id.
func (i Issue) WithLine(id string) Issue {
	i.LineID = id
	return i
}

// WithRecipe sets the recipe id.
func (i Issue) WithRecipe(id string) Issue {
	i.RecipeID = id
	return i
}

// WithChosenOffer sets the chosen offer id.
func (i Issue) WithChosenOffer(id string) Issue {
	i.ChosenOfferID = id
	return i
}

// WithAge sets the price age in days, rounded to 2 decimals.
func (i Issue) WithAge(days float64) Issue {
	d := Round(days, 2)
	i.AgeDays = &d
	return i
}

// WithDetail adds a free-form context value.
func (i Issue) WithDetail(key string, value any) Issue {
	details := make(map[string]any, len(i.Details)+1)
	for k, v := range i.Details {
		details[k] = v
	}
	details[key] = value
	i.Details = details
	return i
}

// IsBlock reports whether the issue is a hard block.
func (i Issue) IsBlock() bool {
	return i.Severity == SeverityBlock
}

// Issues is an ordered issue list.
type Issues []Issue

// Add appends an issue.
func (is *Issues) Add(i Issue) {
	*is = append(*is, i)
}

// HasBlock reports whether any issue is a hard block.
func (is Issues) HasBlock() bool {
	for _, i := range is {
		if i.IsBlock() {
			return true
		}
	}
	return false
}

// CountCode returns the number of issues whose code contains substr.
func (is Issues) CountCode(substr string) int {
	n := 0
	for _, i := range is {
		if strings.Contains(i.Code, substr) {
			n++
		}
	}
	return n
}

// ByCode returns the issues with the exact code.
func (is Issues) ByCode(code string) Issues {
	var out Issues
	for _, i := range is {
		if i.Code == code {
			out = append(out, i)
		}
	}
	return out
}
