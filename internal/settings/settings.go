package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prepdesk/b2bquota/internal/models"
	"gorm.io/gorm"
)

// DB config keys and defaults.
const (
	// DefaultCurrencyKey is the DB config key for the balance currency.
	DefaultCurrencyKey = "DEFAULT_CURRENCY"
	// SummaryCacheTTLSecondsKey controls the summary cache TTL in seconds.
	SummaryCacheTTLSecondsKey = "SUMMARY_CACHE_TTL_SECONDS"

	// FallbackCurrency is used when no currency is configured.
	FallbackCurrency = "IDR"
	// FallbackSummaryCacheTTLSeconds is the default summary cache TTL.
	FallbackSummaryCacheTTLSeconds = 30
)

// snapshot holds the in-memory view of DB-backed settings.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

// global stores the latest snapshot atomically.
var global atomic.Value // stores snapshot

func init() {
	global.Store(snapshot{values: map[string]json.RawMessage{}})
}

// Refresh reloads all settings rows from the database into the in-memory
// snapshot. Required at process startup; value accessors fall back to
// defaults until the first refresh.
func Refresh(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		copied := make([]byte, len(row.Value))
		copy(copied, row.Value)
		values[key] = copied
		if rowUpdatedAt := row.UpdatedAt.UTC(); rowUpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = rowUpdatedAt
		}
	}

	global.Store(snapshot{updatedAt: maxUpdatedAt, values: values})
	return nil
}

// UpdatedAt returns the last update timestamp of the loaded settings.
func UpdatedAt() time.Time {
	return load().updatedAt
}

// Value returns the raw JSON value for a key.
func Value(key string) (json.RawMessage, bool) {
	cfg := load()
	val, ok := cfg.values[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	copied := make([]byte, len(val))
	copy(copied, val)
	return copied, true
}

// DefaultCurrency returns the configured balance currency.
func DefaultCurrency() string {
	raw, ok := Value(DefaultCurrencyKey)
	if !ok {
		return FallbackCurrency
	}
	var currency string
	if errDecode := json.Unmarshal(raw, &currency); errDecode != nil {
		return FallbackCurrency
	}
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return FallbackCurrency
	}
	return currency
}

// SummaryCacheTTL returns the configured summary cache TTL.
func SummaryCacheTTL() time.Duration {
	raw, ok := Value(SummaryCacheTTLSecondsKey)
	if !ok {
		return FallbackSummaryCacheTTLSeconds * time.Second
	}
	var seconds int
	if errDecode := json.Unmarshal(raw, &seconds); errDecode != nil || seconds <= 0 {
		return FallbackSummaryCacheTTLSeconds * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// load returns the current snapshot with safe defaults.
func load() snapshot {
	v := global.Load()
	cfg, ok := v.(snapshot)
	if !ok || cfg.values == nil {
		return snapshot{values: map[string]json.RawMessage{}}
	}
	return cfg
}
