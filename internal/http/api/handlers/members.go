package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepdesk/b2bquota/internal/members"
)

// MemberHandler exposes member onboarding and listing.
type MemberHandler struct {
	svc *members.Service
}

// NewMemberHandler wires a member handler with its service.
func NewMemberHandler(svc *members.Service) *MemberHandler {
	return &MemberHandler{svc: svc}
}

// createMemberRequest captures the payload for creating one member.
type createMemberRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Phone    string `json:"phone"`

	Currency    string                 `json:"currency"`
	ExpiredDate *time.Time             `json:"expired_date"`
	Quotas      []members.GrantRequest `json:"quotas"`
}

// toParams converts the request body into service parameters.
func (r createMemberRequest) toParams() members.CreateParams {
	return members.CreateParams{
		Name:      r.Name,
		Email:     r.Email,
		Username:  r.Username,
		Password:  r.Password,
		Phone:     r.Phone,
		Currency:  r.Currency,
		ExpiredAt: r.ExpiredDate,
		Quotas:    r.Quotas,
	}
}

// Create onboards one member with initial quota grants.
func (h *MemberHandler) Create(c *gin.Context) {
	orgID, ok := parseOrgID(c)
	if !ok {
		return
	}

	var body createMemberRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_JSON", "message": "invalid json"})
		return
	}

	member, errCreate := h.svc.Create(c.Request.Context(), orgID, getAdminID(c), body.toParams())
	if errCreate != nil {
		writeError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "member": member})
}

// bulkCreateRequest captures the payload for bulk member creation.
type bulkCreateRequest struct {
	Users []createMemberRequest `json:"users"`
}

// BulkCreate onboards multiple members; failed rows are reported, not fatal.
func (h *MemberHandler) BulkCreate(c *gin.Context) {
	orgID, ok := parseOrgID(c)
	if !ok {
		return
	}

	var body bulkCreateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_JSON", "message": "invalid json"})
		return
	}
	if len(body.Users) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "USERS_REQUIRED", "message": "users must not be empty"})
		return
	}

	rows := make([]members.CreateParams, 0, len(body.Users))
	for _, u := range body.Users {
		rows = append(rows, u.toParams())
	}
	results := h.svc.BulkCreate(c.Request.Context(), orgID, getAdminID(c), rows)

	success := 0
	for _, r := range results {
		if r.OK {
			success++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"orgId":   orgID,
		"total":   len(results),
		"success": success,
		"failed":  len(results) - success,
		"results": results,
	})
}

// List returns paginated members with their quota buckets.
func (h *MemberHandler) List(c *gin.Context) {
	orgID, ok := parseOrgID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))
	params := members.ListParams{
		Page:     page,
		PageSize: pageSize,
		Query:    c.Query("q"),
	}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status := strings.EqualFold(rawStatus, "true")
		params.Status = &status
	}

	rows, total, errList := h.svc.List(c.Request.Context(), orgID, params)
	if errList != nil {
		writeError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":     rows,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// updateMemberStatusRequest captures the payload for a status change.
type updateMemberStatusRequest struct {
	Status *bool `json:"status"`
}

// UpdateStatus enables or disables a membership.
func (h *MemberHandler) UpdateStatus(c *gin.Context) {
	orgID, ok := parseOrgID(c)
	if !ok {
		return
	}
	memberID, errParse := strconv.ParseUint(c.Param("memberId"), 10, 64)
	if errParse != nil || memberID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_MEMBER_ID", "message": "memberId must be a positive integer"})
		return
	}

	var body updateMemberStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.Status == nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_JSON", "message": "status is required"})
		return
	}

	if errUpdate := h.svc.UpdateStatus(c.Request.Context(), orgID, memberID, *body.Status); errUpdate != nil {
		writeError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "memberId": memberID, "status": *body.Status})
}
