package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prepdesk/b2bquota/internal/cache"
	dbutil "github.com/prepdesk/b2bquota/internal/db"
	"github.com/prepdesk/b2bquota/internal/models"
	"github.com/prepdesk/b2bquota/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Engine moves quota between organization lots and member balances.
//
// Every allocate/revoke runs in one serializable transaction; the database's
// isolation layer is the only concurrency control. Lots are drained
// earliest-expiry first (lots without an expiry last), then lowest id, so the
// oldest purchase empties before a fresher one.
type Engine struct {
	db      *gorm.DB
	summary *cache.SummaryCache
}

// NewEngine wires an allocation engine with its database and optional
// summary cache.
func NewEngine(db *gorm.DB, summary *cache.SummaryCache) *Engine {
	return &Engine{db: db, summary: summary}
}

// Grant describes one quota quantity bound for a member balance.
type Grant struct {
	TestKind   string         // Exam family.
	TestTypeID int            // Test type within the kind.
	Amount     int            // Positive quantity to move.
	Currency   string         // Balance currency; empty uses the configured default.
	ExpiredAt  *time.Time     // Entitlement expiry for newly created balances.
	Note       datatypes.JSON // Optional context recorded on the ledger entry.
}

// Movement is a single allocate or revoke request.
type Movement struct {
	AdminID uint64 // Acting administrator, mandatory.
	UserID  uint64 // Subject user.
	Grant
}

// MovementResult reports the org remaining counter around one movement.
type MovementResult struct {
	OK         bool   `json:"ok"`
	Test       string `json:"test"`
	OrgID      uint64 `json:"orgId"`
	TestTypeID int    `json:"test_type_id"`
	Before     int    `json:"before,omitempty"`
	Change     int    `json:"change"`
	After      int    `json:"after"`
}

// validateMovement checks the caller-supplied parts of a movement.
func validateMovement(m Movement) error {
	if m.AdminID == 0 {
		return newError(CodeActorRequired, "acting admin id is required")
	}
	if m.UserID == 0 {
		return newError(CodeUserNotFound, "subject user id is required")
	}
	if m.Amount <= 0 {
		return newError(CodeAmountInvalid, "amount must be a positive integer")
	}
	return nil
}

// Allocate transfers amount from the organization's lots to the user's
// balance. It returns the organization remaining counter before and after,
// or a coded error with no partial writes.
func (e *Engine) Allocate(ctx context.Context, orgID uint64, m Movement) (*MovementResult, error) {
	if err := validateMovement(m); err != nil {
		return nil, err
	}

	var result *MovementResult
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errOrg := ensureOrg(tx, orgID); errOrg != nil {
			return errOrg
		}
		if errUser := ensureUser(tx, m.UserID); errUser != nil {
			return errUser
		}
		before, errGrant := e.GrantTx(tx, orgID, m.AdminID, m.UserID, m.Grant)
		if errGrant != nil {
			return errGrant
		}
		result = &MovementResult{
			OK:         true,
			Test:       m.TestKind,
			OrgID:      orgID,
			TestTypeID: m.TestTypeID,
			Before:     before,
			Change:     -m.Amount,
			After:      before - m.Amount,
		}
		return nil
	}, dbutil.SerializableTxOptions(e.db))
	if errTx != nil {
		return nil, MapTxError(errTx)
	}

	e.summary.Invalidate(ctx, orgID)
	log.WithFields(log.Fields{
		"org_id":       orgID,
		"admin_id":     m.AdminID,
		"user_id":      m.UserID,
		"test":         m.TestKind,
		"test_type_id": m.TestTypeID,
		"amount":       m.Amount,
	}).Info("quota allocated")
	return result, nil
}

// Revoke transfers amount from the user's balance back to the organization's
// lot inventory.
func (e *Engine) Revoke(ctx context.Context, orgID uint64, m Movement) (*MovementResult, error) {
	if err := validateMovement(m); err != nil {
		return nil, err
	}

	var result *MovementResult
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errOrg := ensureOrg(tx, orgID); errOrg != nil {
			return errOrg
		}
		if errType := ensureTestType(tx, m.TestKind, m.TestTypeID); errType != nil {
			return errType
		}

		var balance models.MemberQuotaBalance
		userQuota := 0
		errFind := dbutil.LockForUpdate(tx).
			Where("user_id = ? AND test_kind = ? AND test_type_id = ?", m.UserID, m.TestKind, m.TestTypeID).
			First(&balance).Error
		if errFind == nil {
			userQuota = balance.Quantity
		} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return errFind
		}
		if userQuota < m.Amount {
			return newError(CodeInsufficientUserQuota,
				fmt.Sprintf("user balance too low (%d < %d)", userQuota, m.Amount))
		}

		before, errRemaining := orgRemaining(tx, orgID, m.TestKind, m.TestTypeID)
		if errRemaining != nil {
			return errRemaining
		}

		// Ordered writes: lots, then balance, then ledger.
		if errReturn := returnToLots(tx, orgID, m.TestKind, m.TestTypeID, m.Amount); errReturn != nil {
			return errReturn
		}
		res := tx.Model(&models.MemberQuotaBalance{}).
			Where("id = ? AND quantity >= ?", balance.ID, m.Amount).
			Update("quantity", gorm.Expr("quantity - ?", m.Amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &Error{Code: CodeTransactionConflict, Message: "balance changed concurrently", Retryable: true}
		}
		entry := models.QuotaLedgerEntry{
			OrgID:             orgID,
			AdminID:           m.AdminID,
			UserID:            m.UserID,
			TestKind:          m.TestKind,
			TestTypeID:        m.TestTypeID,
			Quantity:          -m.Amount,
			OrgRemainingAfter: before + m.Amount,
			Note:              m.Note,
		}
		if errCreate := tx.Create(&entry).Error; errCreate != nil {
			return errCreate
		}

		result = &MovementResult{
			OK:         true,
			Test:       m.TestKind,
			OrgID:      orgID,
			TestTypeID: m.TestTypeID,
			Change:     m.Amount,
			After:      before + m.Amount,
		}
		return nil
	}, dbutil.SerializableTxOptions(e.db))
	if errTx != nil {
		return nil, MapTxError(errTx)
	}

	e.summary.Invalidate(ctx, orgID)
	log.WithFields(log.Fields{
		"org_id":       orgID,
		"admin_id":     m.AdminID,
		"user_id":      m.UserID,
		"test":         m.TestKind,
		"test_type_id": m.TestTypeID,
		"amount":       m.Amount,
	}).Info("quota revoked")
	return result, nil
}

// GrantTx performs one consume-or-fail grant inside the caller's
// transaction: sufficiency check, lot consumption, balance upsert, ledger
// append. It returns the organization remaining counter before the grant.
// Member onboarding reuses it so a failed grant aborts the whole
// member-creation transaction.
func (e *Engine) GrantTx(tx *gorm.DB, orgID, adminID, userID uint64, g Grant) (int, error) {
	if adminID == 0 {
		return 0, newError(CodeActorRequired, "acting admin id is required")
	}
	if g.Amount <= 0 {
		return 0, newError(CodeAmountInvalid, "amount must be a positive integer")
	}
	if errType := ensureTestType(tx, g.TestKind, g.TestTypeID); errType != nil {
		return 0, errType
	}

	before, errRemaining := orgRemaining(tx, orgID, g.TestKind, g.TestTypeID)
	if errRemaining != nil {
		return 0, errRemaining
	}
	if before < g.Amount {
		return 0, newError(CodeInsufficientOrgQuota,
			fmt.Sprintf("org quota too low for %s type %d (%d remaining, %d requested)",
				g.TestKind, g.TestTypeID, before, g.Amount))
	}

	// Ordered writes: lots, then balance, then ledger.
	if errConsume := consumeLots(tx, orgID, g.TestKind, g.TestTypeID, g.Amount); errConsume != nil {
		return 0, errConsume
	}
	if errUpsert := upsertBalance(tx, userID, g); errUpsert != nil {
		return 0, errUpsert
	}
	entry := models.QuotaLedgerEntry{
		OrgID:             orgID,
		AdminID:           adminID,
		UserID:            userID,
		TestKind:          g.TestKind,
		TestTypeID:        g.TestTypeID,
		Quantity:          g.Amount,
		OrgRemainingAfter: before - g.Amount,
		Note:              g.Note,
	}
	if errCreate := tx.Create(&entry).Error; errCreate != nil {
		return 0, errCreate
	}
	return before, nil
}

// TopupRequest records one purchased lot for an organization.
type TopupRequest struct {
	TestKind   string     // Exam family.
	TestTypeID int        // Test type within the kind.
	Quantity   int        // Purchased quantity, positive.
	ExpiredAt  *time.Time // Lot expiry, if any.
}

// Topup records a purchased quota lot. Pricing and settlement happen
// upstream; this only makes the quantity available for allocation.
func (e *Engine) Topup(ctx context.Context, orgID uint64, req TopupRequest) (*models.QuotaLot, error) {
	if req.Quantity <= 0 {
		return nil, newError(CodeAmountInvalid, "quantity must be a positive integer")
	}

	var lot models.QuotaLot
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errOrg := ensureOrg(tx, orgID); errOrg != nil {
			return errOrg
		}
		if errType := ensureTestType(tx, req.TestKind, req.TestTypeID); errType != nil {
			return errType
		}
		lot = models.QuotaLot{
			OrgID:             orgID,
			TestKind:          req.TestKind,
			TestTypeID:        req.TestTypeID,
			InitialQuantity:   req.Quantity,
			RemainingQuantity: req.Quantity,
			Status:            true,
			ExpiredAt:         req.ExpiredAt,
		}
		return tx.Create(&lot).Error
	})
	if errTx != nil {
		return nil, MapTxError(errTx)
	}

	e.summary.Invalidate(ctx, orgID)
	return &lot, nil
}

// ensureOrg verifies the organization exists and is not deleted.
func ensureOrg(tx *gorm.DB, orgID uint64) error {
	var count int64
	if errCount := tx.Model(&models.Org{}).Where("id = ?", orgID).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count == 0 {
		return newError(CodeOrgNotFound, fmt.Sprintf("organization %d not found", orgID))
	}
	return nil
}

// ensureUser verifies the subject user exists and is not deleted.
func ensureUser(tx *gorm.DB, userID uint64) error {
	var count int64
	if errCount := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count == 0 {
		return newError(CodeUserNotFound, fmt.Sprintf("user %d not found", userID))
	}
	return nil
}

// orgRemaining sums the remaining quantity over the org's active lots for
// one test type.
func orgRemaining(tx *gorm.DB, orgID uint64, kind string, testTypeID int) (int, error) {
	var total int64
	errSum := tx.Model(&models.QuotaLot{}).
		Where("org_id = ? AND test_kind = ? AND test_type_id = ? AND status = ?", orgID, kind, testTypeID, true).
		Select("COALESCE(SUM(remaining_quantity), 0)").
		Scan(&total).Error
	if errSum != nil {
		return 0, errSum
	}
	return int(total), nil
}

// consumeLots drains amount across the org's active lots, earliest expiry
// first (NULL expiry last), then lowest id. The caller has already verified
// sufficiency inside the same transaction.
func consumeLots(tx *gorm.DB, orgID uint64, kind string, testTypeID, amount int) error {
	var lots []models.QuotaLot
	if errFind := dbutil.LockForUpdate(tx).
		Where("org_id = ? AND test_kind = ? AND test_type_id = ? AND status = ? AND remaining_quantity > 0",
			orgID, kind, testTypeID, true).
		Order("expired_at IS NULL, expired_at ASC, id ASC").
		Find(&lots).Error; errFind != nil {
		return errFind
	}

	remaining := amount
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		use := remaining
		if lot.RemainingQuantity < use {
			use = lot.RemainingQuantity
		}
		res := tx.Model(&models.QuotaLot{}).
			Where("id = ? AND remaining_quantity >= ?", lot.ID, use).
			Update("remaining_quantity", gorm.Expr("remaining_quantity - ?", use))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &Error{Code: CodeTransactionConflict, Message: "lot changed concurrently", Retryable: true}
		}
		remaining -= use
	}
	if remaining > 0 {
		return &Error{Code: CodeTransactionConflict, Message: "lot inventory changed concurrently", Retryable: true}
	}
	return nil
}

// returnToLots adds amount back to the newest active lot. Lots of one test
// type are fungible, so the receiving lot is arbitrary but stable; when the
// org has no active lot left a zero-basis return lot is created so the
// quantity is not lost.
func returnToLots(tx *gorm.DB, orgID uint64, kind string, testTypeID, amount int) error {
	var lot models.QuotaLot
	errFind := dbutil.LockForUpdate(tx).
		Where("org_id = ? AND test_kind = ? AND test_type_id = ? AND status = ?", orgID, kind, testTypeID, true).
		Order("id DESC").
		First(&lot).Error
	if errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return errFind
		}
		lot = models.QuotaLot{
			OrgID:             orgID,
			TestKind:          kind,
			TestTypeID:        testTypeID,
			InitialQuantity:   0,
			RemainingQuantity: amount,
			Status:            true,
		}
		return tx.Create(&lot).Error
	}
	return tx.Model(&models.QuotaLot{}).
		Where("id = ?", lot.ID).
		Update("remaining_quantity", gorm.Expr("remaining_quantity + ?", amount)).Error
}

// upsertBalance increments the member balance for one test type, creating
// the row on first allocation. Lookup-then-update keeps one logical row per
// (user, kind, type).
func upsertBalance(tx *gorm.DB, userID uint64, g Grant) error {
	var balance models.MemberQuotaBalance
	errFind := tx.Where("user_id = ? AND test_kind = ? AND test_type_id = ?", userID, g.TestKind, g.TestTypeID).
		First(&balance).Error
	if errFind == nil {
		return tx.Model(&models.MemberQuotaBalance{}).
			Where("id = ?", balance.ID).
			Update("quantity", gorm.Expr("quantity + ?", g.Amount)).Error
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return errFind
	}

	currency := g.Currency
	if currency == "" {
		currency = settings.DefaultCurrency()
	}
	balance = models.MemberQuotaBalance{
		UserID:     userID,
		TestKind:   g.TestKind,
		TestTypeID: g.TestTypeID,
		Quantity:   g.Amount,
		Currency:   currency,
		ExpiredAt:  g.ExpiredAt,
	}
	return tx.Create(&balance).Error
}

// MapTxError normalizes transaction failures: coded errors pass through,
// isolation-layer aborts become retryable conflicts, everything else
// surfaces unchanged. Postgres reports serialization failures and deadlocks
// as SQLSTATE 40001/40P01; SQLite reports writer contention as a busy or
// locked database.
func MapTxError(err error) error {
	if err == nil {
		return nil
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return &Error{Code: CodeTransactionConflict, Message: "concurrent quota update, retry the request", Retryable: true}
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "SQLITE_LOCKED") {
		return &Error{Code: CodeTransactionConflict, Message: "concurrent quota update, retry the request", Retryable: true}
	}
	return err
}
