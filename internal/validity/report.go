package validity

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/heraklist/evochia-ops/internal/model"
)

// FreshnessStatus is the refresh state of a supplier price list.
type FreshnessStatus string

const (
	FreshnessOK      FreshnessStatus = "OK"
	FreshnessStale   FreshnessStatus = "STALE"
	FreshnessExpired FreshnessStatus = "EXPIRED"
)

// Next actions reported per freshness status.
const (
	ActionNone            = "none"
	ActionReimport        = "re-import latest price list"
	ActionConfirmOrImport = "run with --confirm-stale or re-import latest price list"
)

// SupplierFreshness is one row of the refresh report.
type SupplierFreshness struct {
	SupplierID string          `json:"supplier_id"`
	CapturedAt time.Time       `json:"captured_at"`
	ValidUntil *time.Time      `json:"valid_until"`
	AgeDays    float64         `json:"age_days"`
	Offers     int             `json:"offers"`
	Status     FreshnessStatus `json:"status"`
	NextAction string          `json:"next_action"`
}

// RefreshSummary counts report rows by status.
type RefreshSummary struct {
	Suppliers int `json:"suppliers"`
	Stale     int `json:"stale"`
	Expired   int `json:"expired"`
}

// SupplierReport groups offers by supplier and classifies each supplier's
// most recent price list. Suppliers without any parseable captured_at are
// omitted. Rows keep first-seen supplier order.
func (g Gate) SupplierReport(offers []model.Offer, now time.Time) []SupplierFreshness {
	fold := cases.Fold()

	type acc struct {
		captured time.Time
		until    time.Time
		offers   int
	}
	var order []string
	bySupplier := make(map[string]*acc)

	for _, o := range offers {
		sid := fold.String(strings.TrimSpace(o.Supplier))
		if sid == "" {
			sid = "unknown"
		}
		a, ok := bySupplier[sid]
		if !ok {
			a = &acc{}
			bySupplier[sid] = a
			order = append(order, sid)
		}
		a.offers++
		if t, ok := ParseTimestamp(o.CapturedAt); ok && t.After(a.captured) {
			a.captured = t
		}
		if t, ok := ParseTimestamp(o.ValidUntil); ok && t.After(a.until) {
			a.until = t
		}
	}

	report := make([]SupplierFreshness, 0, len(order))
	for _, sid := range order {
		a := bySupplier[sid]
		if a.captured.IsZero() {
			continue
		}
		row := SupplierFreshness{
			SupplierID: sid,
			CapturedAt: a.captured,
			AgeDays:    model.Round(AgeDays(a.captured, now), 2),
			Offers:     a.offers,
			Status:     FreshnessOK,
			NextAction: ActionNone,
		}
		age := AgeDays(a.captured, now)
		expired := false
		if !a.until.IsZero() {
			until := a.until
			row.ValidUntil = &until
			expired = now.After(until)
		}
		switch {
		case expired || age > float64(g.BlockAfterDays):
			row.Status = FreshnessExpired
			row.NextAction = ActionReimport
		case age >= float64(g.MaxAgeDays):
			row.Status = FreshnessStale
			row.NextAction = ActionConfirmOrImport
		}
		report = append(report, row)
	}
	return report
}

// Summarize counts stale and expired rows.
func Summarize(rows []SupplierFreshness) RefreshSummary {
	s := RefreshSummary{Suppliers: len(rows)}
	for _, r := range rows {
		switch r.Status {
		case FreshnessStale:
			s.Stale++
		case FreshnessExpired:
			s.Expired++
		}
	}
	return s
}
