package quota

import (
	"context"
	"fmt"
	"sort"

	"github.com/prepdesk/b2bquota/internal/models"
	"gorm.io/gorm"
)

// ieltsLabels maps IELTS test type ids to their display labels.
var ieltsLabels = map[int]string{
	1: "Listening",
	2: "Reading",
	3: "Writing",
	4: "Speaking",
	5: "Complete",
}

// toeflLabels maps TOEFL test type ids to their display labels.
var toeflLabels = map[int]string{
	1: "Listening",
	2: "Structure & Written Expression",
	3: "Reading",
	4: "Complete",
}

// KnownTestKind reports whether kind is a supported exam family.
func KnownTestKind(kind string) bool {
	return kind == models.TestKindIELTS || kind == models.TestKindTOEFL
}

// kindLabels returns the label map for a test kind.
func kindLabels(kind string) map[int]string {
	switch kind {
	case models.TestKindIELTS:
		return ieltsLabels
	case models.TestKindTOEFL:
		return toeflLabels
	default:
		return nil
	}
}

// Label resolves the display label for a test type id within a kind.
func Label(kind string, testTypeID int) (string, bool) {
	labels := kindLabels(kind)
	if labels == nil {
		return "", false
	}
	label, ok := labels[testTypeID]
	return label, ok
}

// TypeIDs returns the sorted test type ids of a kind.
func TypeIDs(kind string) []int {
	labels := kindLabels(kind)
	ids := make([]int, 0, len(labels))
	for id := range labels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SeedTestTypes inserts missing master catalog rows for all known test types.
func SeedTestTypes(db *gorm.DB) error {
	for _, kind := range []string{models.TestKindIELTS, models.TestKindTOEFL} {
		for _, id := range TypeIDs(kind) {
			label, _ := Label(kind, id)
			var count int64
			if errCount := db.Model(&models.TestType{}).
				Where("test_kind = ? AND test_type_id = ?", kind, id).
				Count(&count).Error; errCount != nil {
				return errCount
			}
			if count > 0 {
				continue
			}
			row := models.TestType{TestKind: kind, TestTypeID: id, Label: label}
			if errCreate := db.Create(&row).Error; errCreate != nil {
				return errCreate
			}
		}
	}
	return nil
}

// ValidateCatalog cross-checks the in-code label maps against the master
// table. A catalog row without a label, or a label without a catalog row,
// fails loudly at startup instead of being silently skipped at query time.
func ValidateCatalog(ctx context.Context, db *gorm.DB) error {
	var rows []models.TestType
	if errFind := db.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return errFind
	}

	seen := map[string]map[int]bool{}
	for _, row := range rows {
		if _, ok := Label(row.TestKind, row.TestTypeID); !ok {
			return fmt.Errorf("quota: catalog row %s/%d has no label mapping", row.TestKind, row.TestTypeID)
		}
		if seen[row.TestKind] == nil {
			seen[row.TestKind] = map[int]bool{}
		}
		seen[row.TestKind][row.TestTypeID] = true
	}

	for _, kind := range []string{models.TestKindIELTS, models.TestKindTOEFL} {
		for _, id := range TypeIDs(kind) {
			if !seen[kind][id] {
				return fmt.Errorf("quota: label %s/%d missing from master catalog", kind, id)
			}
		}
	}
	return nil
}

// ensureTestType verifies the test type exists in the active master catalog.
func ensureTestType(tx *gorm.DB, kind string, testTypeID int) error {
	if !KnownTestKind(kind) {
		return newError(CodeUnknownTestType, fmt.Sprintf("unknown test kind %q", kind))
	}
	var count int64
	if errCount := tx.Model(&models.TestType{}).
		Where("test_kind = ? AND test_type_id = ?", kind, testTypeID).
		Count(&count).Error; errCount != nil {
		return errCount
	}
	if count == 0 {
		return newError(CodeUnknownTestType, fmt.Sprintf("%s test_type_id %d is not in the catalog", kind, testTypeID))
	}
	return nil
}
