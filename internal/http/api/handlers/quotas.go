package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepdesk/b2bquota/internal/quota"
)

// QuotaHandler exposes quota allocation, revocation, topup, and summary.
type QuotaHandler struct {
	engine *quota.Engine
}

// NewQuotaHandler wires a quota handler with the allocation engine.
func NewQuotaHandler(engine *quota.Engine) *QuotaHandler {
	return &QuotaHandler{engine: engine}
}

// movementRequest captures the payload for allocate and revoke.
type movementRequest struct {
	UserID     uint64 `json:"user_id"`      // Subject user.
	Test       string `json:"test"`         // Exam family (IELTS | TOEFL).
	TestTypeID int    `json:"test_type_id"` // Test type within the kind.
	Amount     int    `json:"amount"`       // Positive quantity to move.
}

// Allocate transfers quota from the organization's lots to a member balance.
func (h *QuotaHandler) Allocate(c *gin.Context) {
	orgID, ok := parseOrgID(c)
	if !ok {
		return
	}

	var body movementRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_JSON", "message": "invalid json"})
		return
	}

	result, errAllocate := h.engine.Allocate(c.Request.Context(), orgID, quota.Movement{
		AdminID: getAdminID(c),
		UserID:  body.UserID,
		Grant: quota.Grant{
			TestKind:   body.Test,
			TestTypeID: body.TestTypeID,
			Amount:     body.Amount,
		},
	})
	if errAllocate != nil {
		writeError(c, errAllocate)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Revoke transfers quota from a member balance back to the organization.
func (h *QuotaHandler) Revoke(c *gin.Context) {
	orgID, ok := parseOrgID(c)
	if !ok {
		return
	}

	var body movementRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_JSON", "message": "invalid json"})
		return
	}

	result, errRevoke := h.engine.Revoke(c.Request.Context(), orgID, quota.Movement{
		AdminID: getAdminID(c),
		UserID:  body.UserID,
		Grant: quota.Grant{
			TestKind:   body.Test,
			TestTypeID: body.TestTypeID,
			Amount:     body.Amount,
		},
	})
	if errRevoke != nil {
		writeError(c, errRevoke)
		return
	}
	c.JSON(http.StatusOK, result)
}

// topupRequest captures the payload for recording a purchased lot.
type topupRequest struct {
	Test       string     `json:"test"`         // Exam family.
	TestTypeID int        `json:"test_type_id"` // Test type within the kind.
	Quantity   int        `json:"quantity"`     // Purchased quantity.
	ExpiredAt  *time.Time `json:"expired_at"`   // Optional lot expiry.
}

// Topup records a purchased quota lot for the organization.
func (h *QuotaHandler) Topup(c *gin.Context) {
	orgID, ok := parseOrgID(c)
	if !ok {
		return
	}

	var body topupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_JSON", "message": "invalid json"})
		return
	}

	lot, errTopup := h.engine.Topup(c.Request.Context(), orgID, quota.TopupRequest{
		TestKind:   body.Test,
		TestTypeID: body.TestTypeID,
		Quantity:   body.Quantity,
		ExpiredAt:  body.ExpiredAt,
	})
	if errTopup != nil {
		writeError(c, errTopup)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"ok":           true,
		"lot_id":       lot.ID,
		"orgId":        lot.OrgID,
		"test":         lot.TestKind,
		"test_type_id": lot.TestTypeID,
		"quantity":     lot.InitialQuantity,
	})
}

// Summary reports topup, used, and remaining quota per test kind and type.
func (h *QuotaHandler) Summary(c *gin.Context) {
	orgID, ok := parseOrgID(c)
	if !ok {
		return
	}

	summary, errSummarize := h.engine.Summarize(c.Request.Context(), orgID)
	if errSummarize != nil {
		writeError(c, errSummarize)
		return
	}
	c.JSON(http.StatusOK, summary)
}
