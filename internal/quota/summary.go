package quota

import (
	"context"
	"sort"
	"time"

	"github.com/prepdesk/b2bquota/internal/models"
	"gorm.io/gorm"
)

// TypeSummary aggregates one test type of one kind.
type TypeSummary struct {
	TestTypeID int    `json:"test_type_id"`
	Label      string `json:"label"`
	Topup      int    `json:"topup"`
	Used       int    `json:"used"`
	Remaining  int    `json:"remaining"`
}

// KindSummary aggregates one exam family for an organization.
type KindSummary struct {
	TotalTopup     int           `json:"totalTopup"`
	TotalUsed      int           `json:"totalUsed"`
	TotalRemaining int           `json:"totalRemaining"`
	PerType        []TypeSummary `json:"perType"`
}

// Summary is the read-only quota report for one organization.
type Summary struct {
	OrgID     uint64      `json:"orgId"`
	IELTS     KindSummary `json:"ielts"`
	TOEFL     KindSummary `json:"toefl"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// typeAggRow carries one grouped aggregate from the database.
type typeAggRow struct {
	TestTypeID int
	Total      int
}

// Summarize reports topup, used, and remaining per test kind and type.
// Topup is the sum of active-lot initial quantities, used is the net of
// ledger signed quantities, and remaining is clamped at zero uniformly.
// The report never mutates state and runs at the default isolation level;
// results may be served from the summary cache within its TTL.
func (e *Engine) Summarize(ctx context.Context, orgID uint64) (*Summary, error) {
	var cached Summary
	if e.summary.Get(ctx, orgID, &cached) {
		return &cached, nil
	}

	conn := e.db.WithContext(ctx)
	if errOrg := ensureOrg(conn, orgID); errOrg != nil {
		return nil, errOrg
	}

	out := Summary{OrgID: orgID, UpdatedAt: time.Now().UTC()}
	for _, kind := range []string{models.TestKindIELTS, models.TestKindTOEFL} {
		kindSummary, errKind := summarizeKind(conn, orgID, kind)
		if errKind != nil {
			return nil, errKind
		}
		switch kind {
		case models.TestKindIELTS:
			out.IELTS = *kindSummary
		case models.TestKindTOEFL:
			out.TOEFL = *kindSummary
		}
	}

	e.summary.Set(ctx, orgID, &out)
	return &out, nil
}

// summarizeKind builds the per-type buckets for one exam family.
func summarizeKind(conn *gorm.DB, orgID uint64, kind string) (*KindSummary, error) {
	var topups []typeAggRow
	if errTopup := conn.Model(&models.QuotaLot{}).
		Where("org_id = ? AND test_kind = ? AND status = ?", orgID, kind, true).
		Select("test_type_id, COALESCE(SUM(initial_quantity), 0) AS total").
		Group("test_type_id").
		Scan(&topups).Error; errTopup != nil {
		return nil, errTopup
	}

	var used []typeAggRow
	if errUsed := conn.Model(&models.QuotaLedgerEntry{}).
		Where("org_id = ? AND test_kind = ?", orgID, kind).
		Select("test_type_id, COALESCE(SUM(quantity), 0) AS total").
		Group("test_type_id").
		Scan(&used).Error; errUsed != nil {
		return nil, errUsed
	}

	buckets := map[int]*TypeSummary{}
	bucket := func(testTypeID int) *TypeSummary {
		if b, ok := buckets[testTypeID]; ok {
			return b
		}
		label, ok := Label(kind, testTypeID)
		if !ok {
			label = "Unknown"
		}
		b := &TypeSummary{TestTypeID: testTypeID, Label: label}
		buckets[testTypeID] = b
		return b
	}
	for _, row := range topups {
		bucket(row.TestTypeID).Topup = row.Total
	}
	for _, row := range used {
		bucket(row.TestTypeID).Used = row.Total
	}

	out := KindSummary{PerType: make([]TypeSummary, 0, len(buckets))}
	ids := make([]int, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		b := buckets[id]
		b.Remaining = b.Topup - b.Used
		if b.Remaining < 0 {
			b.Remaining = 0
		}
		out.TotalTopup += b.Topup
		out.TotalUsed += b.Used
		out.TotalRemaining += b.Remaining
		out.PerType = append(out.PerType, *b)
	}
	return &out, nil
}
