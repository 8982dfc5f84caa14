package model

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// RuleKind is a policy primitive.
type RuleKind string

const (
	RuleLock   RuleKind = "LOCK"
	RuleBan    RuleKind = "BAN"
	RulePrefer RuleKind = "PREFER"
)

// Scope selects which offers a BAN or PREFER rule targets.
type Scope string

const (
	ScopeCategory Scope = "category"
	ScopeProduct  Scope = "product_id"
	ScopeSupplier Scope = "supplier_id"
)

// StringList decodes either a JSON string or a JSON array of strings. A nil
// list means the selector was absent; a non-nil empty list matches nothing.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []any
		if err := json.Unmarshal(data, &list); err != nil {
			return eris.Wrap(err, "model: decode selector list")
		}
		out := make(StringList, 0, len(list))
		for _, v := range list {
			out = append(out, scalarString(v))
		}
		*s = out
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrap(err, "model: decode selector value")
	}
	*s = StringList{scalarString(v)}
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Selectors restrict a rule to service types and tiers. Absent means any.
type Selectors struct {
	ServiceType StringList `json:"service_type,omitempty"`
	Tier        StringList `json:"tier,omitempty"`
}

// PolicyRule is one LOCK, BAN or PREFER entry. Rules form an ordered list.
type PolicyRule struct {
	ID            string    `json:"id,omitempty"`
	Rule          RuleKind  `json:"rule"`
	Selectors     Selectors `json:"selectors,omitempty"`
	Scope         Scope     `json:"scope,omitempty"`
	Match         string    `json:"match,omitempty"`
	ProductID     string    `json:"product_id,omitempty"`
	Supplier      string    `json:"supplier,omitempty"`
	SupplierID    string    `json:"supplier_id,omitempty"`
	SupplierSKU   string    `json:"supplier_sku,omitempty"`
	MaxPremiumPct float64   `json:"max_premium_pct,omitempty"`
	Note          string    `json:"note,omitempty"`
}

// Kind returns the upper-cased rule kind.
func (r PolicyRule) Kind() RuleKind {
	return RuleKind(strings.ToUpper(strings.TrimSpace(string(r.Rule))))
}

// NormalizedScope returns the lower-cased scope.
func (r PolicyRule) NormalizedScope() Scope {
	return Scope(strings.ToLower(strings.TrimSpace(string(r.Scope))))
}

// TargetSupplier returns supplier, falling back to supplier_id.
func (r PolicyRule) TargetSupplier() string {
	if r.Supplier != "" {
		return r.Supplier
	}
	return r.SupplierID
}

// PolicyDocument is the on-disk policy list shape. Policies takes precedence
// over the legacy Overrides key when both are present.
type PolicyDocument struct {
	Policies  []PolicyRule `json:"policies,omitempty"`
	Overrides []PolicyRule `json:"overrides,omitempty"`
}

// Rules returns the effective ordered rule list.
func (d PolicyDocument) Rules() []PolicyRule {
	if d.Policies != nil {
		return d.Policies
	}
	return d.Overrides
}
