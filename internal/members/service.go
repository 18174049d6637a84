package members

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/prepdesk/b2bquota/internal/db"
	"github.com/prepdesk/b2bquota/internal/models"
	"github.com/prepdesk/b2bquota/internal/quota"
	"github.com/prepdesk/b2bquota/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Member-specific error codes, reported through quota.Error.
const (
	// CodeUserDataRequired means name, email, or username was missing.
	CodeUserDataRequired = "USER_DATA_REQUIRED"
	// CodeUserDuplicate means the username or email is already registered.
	CodeUserDuplicate = "USER_DUPLICATE"
	// CodeMemberNotFound means the membership row does not exist.
	CodeMemberNotFound = "MEMBER_NOT_FOUND"
)

// Service manages organization members and their onboarding quota grants.
type Service struct {
	db     *gorm.DB
	engine *quota.Engine
}

// NewService wires a member service with its database and allocation engine.
func NewService(db *gorm.DB, engine *quota.Engine) *Service {
	return &Service{db: db, engine: engine}
}

// GrantRequest is one requested quota grant for a new member.
type GrantRequest struct {
	TestKind   string `json:"test_name"`
	TestTypeID int    `json:"test_type_id"`
	Quota      int    `json:"quota"`
}

// CreateParams holds inputs for creating one member.
type CreateParams struct {
	Name     string
	Email    string
	Username string
	Password string
	Phone    string

	Currency  string
	ExpiredAt *time.Time
	Quotas    []GrantRequest
}

// Member is the created membership with its user record.
type Member struct {
	ID     uint64       `json:"id"`
	OrgID  uint64       `json:"orgId"`
	UserID uint64       `json:"userId"`
	Role   string       `json:"role"`
	Status bool         `json:"status"`
	User   *models.User `json:"user,omitempty"`
}

// Create onboards a new member: user row, membership row, and every
// requested quota grant run in one serializable transaction. Any grant
// failure aborts the whole creation, so a user row never exists without its
// quota. An empty grant list fails before any row is written.
func (s *Service) Create(ctx context.Context, orgID, adminID uint64, params CreateParams) (*Member, error) {
	if adminID == 0 {
		return nil, &quota.Error{Code: quota.CodeActorRequired, Message: "acting admin id is required"}
	}
	if len(params.Quotas) == 0 {
		return nil, &quota.Error{Code: quota.CodeQuotasRequired, Message: "at least one quota grant is required for a new member"}
	}

	name := strings.TrimSpace(params.Name)
	email := strings.TrimSpace(params.Email)
	username := strings.TrimSpace(params.Username)
	if name == "" || email == "" || username == "" {
		return nil, &quota.Error{Code: CodeUserDataRequired, Message: "name, email, and username are required"}
	}

	hashed := ""
	if params.Password != "" {
		var errHash error
		hashed, errHash = security.HashPassword(params.Password)
		if errHash != nil {
			return nil, errHash
		}
	}

	var out *Member
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orgCount int64
		if errCount := tx.Model(&models.Org{}).Where("id = ?", orgID).Count(&orgCount).Error; errCount != nil {
			return errCount
		}
		if orgCount == 0 {
			return &quota.Error{Code: quota.CodeOrgNotFound, Message: fmt.Sprintf("organization %d not found", orgID)}
		}

		var existing models.User
		errFind := tx.Where("username = ? OR email = ?", username, email).First(&existing).Error
		if errFind == nil {
			return duplicateError(&existing, username, email)
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return errFind
		}

		user := models.User{
			Name:         name,
			Email:        email,
			Username:     username,
			Phone:        strings.TrimSpace(params.Phone),
			Password:     hashed,
			ReferralCode: newReferralCode(),
			Status:       true,
		}
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}

		member := models.OrgMember{
			OrgID:  orgID,
			UserID: user.ID,
			Role:   models.MemberRoleUser,
			Status: true,
		}
		if errCreate := tx.Create(&member).Error; errCreate != nil {
			return errCreate
		}

		for _, g := range params.Quotas {
			grant := quota.Grant{
				TestKind:   g.TestKind,
				TestTypeID: g.TestTypeID,
				Amount:     g.Quota,
				Currency:   params.Currency,
				ExpiredAt:  params.ExpiredAt,
			}
			if _, errGrant := s.engine.GrantTx(tx, orgID, adminID, user.ID, grant); errGrant != nil {
				return errGrant
			}
		}

		out = &Member{
			ID:     member.ID,
			OrgID:  orgID,
			UserID: user.ID,
			Role:   member.Role,
			Status: member.Status,
			User:   &user,
		}
		return nil
	}, dbutil.SerializableTxOptions(s.db))
	if errTx != nil {
		return nil, quota.MapTxError(errTx)
	}

	log.WithFields(log.Fields{
		"org_id":   orgID,
		"admin_id": adminID,
		"user_id":  out.UserID,
		"grants":   len(params.Quotas),
	}).Info("member onboarded")
	return out, nil
}

// BulkResult reports the outcome of one row of a bulk creation.
type BulkResult struct {
	OK       bool       `json:"ok"`
	Index    int        `json:"index"`
	Email    string     `json:"email,omitempty"`
	Username string     `json:"username,omitempty"`
	MemberID uint64     `json:"memberId,omitempty"`
	Error    *BulkError `json:"error,omitempty"`
}

// BulkError is the per-row failure detail of a bulk creation.
type BulkError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulkCreate onboards members one at a time; a failed row does not stop the
// rest, each row is its own transaction.
func (s *Service) BulkCreate(ctx context.Context, orgID, adminID uint64, rows []CreateParams) []BulkResult {
	results := make([]BulkResult, 0, len(rows))
	for i, row := range rows {
		member, errCreate := s.Create(ctx, orgID, adminID, row)
		if errCreate != nil {
			code := quota.ErrCode(errCreate)
			if code == "" {
				code = "UNKNOWN_ERROR"
			}
			results = append(results, BulkResult{
				Index:    i,
				Email:    row.Email,
				Username: row.Username,
				Error:    &BulkError{Code: code, Message: errCreate.Error()},
			})
			continue
		}
		results = append(results, BulkResult{
			OK:       true,
			Index:    i,
			Email:    row.Email,
			Username: row.Username,
			MemberID: member.ID,
		})
	}
	return results
}

// ListParams filters and paginates the member list.
type ListParams struct {
	Page     int
	PageSize int
	Query    string
	Status   *bool
}

// MemberRow is one member list entry with per-label quota buckets.
type MemberRow struct {
	ID        uint64                    `json:"id"`
	UserID    uint64                    `json:"userId"`
	Role      string                    `json:"role"`
	Status    bool                      `json:"status"`
	CreatedAt time.Time                 `json:"createdAt"`
	User      *models.User              `json:"user,omitempty"`
	Quotas    map[string]map[string]int `json:"quotas"`
}

// List returns active members of an organization with their current quota
// balances bucketed by test kind and label.
func (s *Service) List(ctx context.Context, orgID uint64, params ListParams) ([]MemberRow, int64, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	conn := s.db.WithContext(ctx)
	query := conn.Model(&models.OrgMember{}).
		Where("b2b_org_members.org_id = ? AND b2b_org_members.role = ?", orgID, models.MemberRoleUser)
	if params.Status != nil {
		query = query.Where("b2b_org_members.status = ?", *params.Status)
	}
	if q := strings.TrimSpace(params.Query); q != "" {
		pattern := dbutil.NormalizeLikePattern(conn, "%"+q+"%")
		query = query.Joins("JOIN users ON users.id = b2b_org_members.user_id").
			Where(conn.Where(dbutil.CaseInsensitiveLikeExpr(conn, "users.name"), pattern).
				Or(dbutil.CaseInsensitiveLikeExpr(conn, "users.email"), pattern))
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, 0, errCount
	}

	var memberRows []models.OrgMember
	if errFind := query.Preload("User").
		Order("b2b_org_members.created_at DESC, b2b_org_members.id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&memberRows).Error; errFind != nil {
		return nil, 0, errFind
	}

	userIDs := make([]uint64, 0, len(memberRows))
	for _, m := range memberRows {
		userIDs = append(userIDs, m.UserID)
	}

	buckets, errBuckets := s.quotaBuckets(ctx, userIDs)
	if errBuckets != nil {
		return nil, 0, errBuckets
	}

	out := make([]MemberRow, 0, len(memberRows))
	for _, m := range memberRows {
		row := MemberRow{
			ID:        m.ID,
			UserID:    m.UserID,
			Role:      m.Role,
			Status:    m.Status,
			CreatedAt: m.CreatedAt,
			User:      m.User,
			Quotas:    buckets[m.UserID],
		}
		if row.Quotas == nil {
			row.Quotas = emptyBuckets()
		}
		out = append(out, row)
	}
	return out, total, nil
}

// UpdateStatus toggles a membership row.
func (s *Service) UpdateStatus(ctx context.Context, orgID, memberID uint64, status bool) error {
	res := s.db.WithContext(ctx).Model(&models.OrgMember{}).
		Where("id = ? AND org_id = ?", memberID, orgID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &quota.Error{Code: CodeMemberNotFound, Message: fmt.Sprintf("member %d not found in organization %d", memberID, orgID)}
	}
	return nil
}

// quotaBuckets aggregates member balances per user into label buckets.
func (s *Service) quotaBuckets(ctx context.Context, userIDs []uint64) (map[uint64]map[string]map[string]int, error) {
	out := map[uint64]map[string]map[string]int{}
	if len(userIDs) == 0 {
		return out, nil
	}

	type aggRow struct {
		UserID     uint64
		TestKind   string
		TestTypeID int
		Total      int
	}
	var rows []aggRow
	if errAgg := s.db.WithContext(ctx).Model(&models.MemberQuotaBalance{}).
		Where("user_id IN ?", userIDs).
		Select("user_id, test_kind, test_type_id, COALESCE(SUM(quantity), 0) AS total").
		Group("user_id, test_kind, test_type_id").
		Order("test_type_id ASC").
		Scan(&rows).Error; errAgg != nil {
		return nil, errAgg
	}

	for _, id := range userIDs {
		out[id] = emptyBuckets()
	}
	for _, row := range rows {
		label, ok := quota.Label(row.TestKind, row.TestTypeID)
		if !ok {
			// Catalog validation at startup makes this unreachable for
			// seeded types; an unknown id in data still must not vanish
			// silently.
			log.WithFields(log.Fields{
				"test_kind":    row.TestKind,
				"test_type_id": row.TestTypeID,
			}).Warn("member list: balance row with unmapped test type")
			continue
		}
		if out[row.UserID] == nil {
			out[row.UserID] = emptyBuckets()
		}
		out[row.UserID][row.TestKind][label] = row.Total
	}
	return out, nil
}

// emptyBuckets builds zeroed quota buckets for every known test type.
func emptyBuckets() map[string]map[string]int {
	out := map[string]map[string]int{}
	for _, kind := range []string{models.TestKindIELTS, models.TestKindTOEFL} {
		out[kind] = map[string]int{}
		for _, id := range quota.TypeIDs(kind) {
			label, _ := quota.Label(kind, id)
			out[kind][label] = 0
		}
	}
	return out
}

// duplicateError says which identity field collides.
func duplicateError(existing *models.User, username, email string) error {
	conflicts := make([]string, 0, 2)
	if existing.Username == username {
		conflicts = append(conflicts, "username")
	}
	if existing.Email != "" && existing.Email == email {
		conflicts = append(conflicts, "email")
	}
	msg := "username or email already registered"
	switch {
	case len(conflicts) == 2:
		msg = "username and email already registered"
	case len(conflicts) == 1:
		msg = conflicts[0] + " already registered"
	}
	return &quota.Error{Code: CodeUserDuplicate, Message: msg}
}

// newReferralCode generates a short random member referral code.
func newReferralCode() string {
	buf := make([]byte, 6)
	if _, errRead := rand.Read(buf); errRead != nil {
		return fmt.Sprintf("B2B-%d", time.Now().UnixNano())
	}
	return "B2B-" + strings.ToUpper(hex.EncodeToString(buf))
}
