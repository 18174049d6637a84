package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prepdesk/b2bquota/internal/members"
	"github.com/prepdesk/b2bquota/internal/quota"
	log "github.com/sirupsen/logrus"
)

// getAdminID extracts the authenticated admin ID from gin context.
func getAdminID(c *gin.Context) uint64 {
	val, exists := c.Get("adminID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// parseOrgID reads the :orgId path parameter. On failure it writes a 400
// response and returns false.
func parseOrgID(c *gin.Context) (uint64, bool) {
	orgID, errParse := strconv.ParseUint(c.Param("orgId"), 10, 64)
	if errParse != nil || orgID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ORG_ID", "message": "orgId must be a positive integer"})
		return 0, false
	}
	return orgID, true
}

// statusForCode maps quota error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case quota.CodeOrgNotFound, quota.CodeUserNotFound, members.CodeMemberNotFound:
		return http.StatusNotFound
	case quota.CodeTransactionConflict:
		return http.StatusConflict
	case quota.CodeInsufficientOrgQuota, quota.CodeInsufficientUserQuota,
		quota.CodeUnknownTestType, quota.CodeQuotasRequired,
		quota.CodeActorRequired, quota.CodeAmountInvalid,
		members.CodeUserDataRequired, members.CodeUserDuplicate:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a coded error; uncoded errors become opaque 500s.
func writeError(c *gin.Context, err error) {
	var qe *quota.Error
	if !errors.As(err, &qe) {
		log.WithError(err).Error("quota api: internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL", "message": "internal error"})
		return
	}
	c.JSON(statusForCode(qe.Code), gin.H{"code": qe.Code, "message": qe.Message})
}
