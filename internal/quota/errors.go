package quota

import "errors"

// Stable error codes surfaced to API callers.
const (
	// CodeInsufficientOrgQuota means the org's active lot total is below the requested amount.
	CodeInsufficientOrgQuota = "INSUFFICIENT_ORG_QUOTA"
	// CodeInsufficientUserQuota means the user balance is below the requested revocation amount.
	CodeInsufficientUserQuota = "INSUFFICIENT_USER_QUOTA"
	// CodeUnknownTestType means the test type id is not in the active master catalog.
	CodeUnknownTestType = "UNKNOWN_TEST_TYPE"
	// CodeQuotasRequired means a member onboarding request carried no quota grants.
	CodeQuotasRequired = "QUOTAS_REQUIRED"
	// CodeActorRequired means no acting admin id was supplied.
	CodeActorRequired = "ACTOR_REQUIRED"
	// CodeAmountInvalid means the requested amount is not a positive integer.
	CodeAmountInvalid = "AMOUNT_INVALID"
	// CodeOrgNotFound means the organization does not exist or is deleted.
	CodeOrgNotFound = "ORG_NOT_FOUND"
	// CodeUserNotFound means the subject user does not exist or is deleted.
	CodeUserNotFound = "USER_NOT_FOUND"
	// CodeTransactionConflict means the isolation layer aborted the transaction; safe to retry.
	CodeTransactionConflict = "TRANSACTION_CONFLICT"
)

// Error is a coded quota error reported synchronously to the caller.
type Error struct {
	Code      string // Stable machine-readable code.
	Message   string // Human-readable description.
	Retryable bool   // Whether retrying the same inputs can succeed.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// newError builds a non-retryable coded error.
func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrCode extracts the quota error code from err, or "" when err is not a quota error.
func ErrCode(err error) string {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// IsRetryable reports whether err is a transient conflict worth retrying.
func IsRetryable(err error) bool {
	var qe *Error
	return errors.As(err, &qe) && qe.Retryable
}
