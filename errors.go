package auth

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeInvalidSignature   = "TOKEN_INVALID_SIGNATURE"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeUnauthorized       = "UNAUTHORIZED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeNotImpersonating   = "NOT_IMPERSONATING"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeInactiveAccount    = "ACCOUNT_INACTIVE"
	TextCodeTooManyAttempts    = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeInsecureSecret     = "INSECURE_SIGNING_SECRET"
	TextCodeWorkspaceNotFound  = "WORKSPACE_NOT_FOUND"
	TextCodeMemberNotFound     = "MEMBER_NOT_FOUND"
	TextCodeAdminNotFound      = "PLATFORM_ADMIN_NOT_FOUND"
)

// ErrTokenMalformed is returned when a token can not be parsed or its claims
// do not describe a valid session.
var ErrTokenMalformed = errors.New("malformed session token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidSignature is returned for tampered or foreign tokens.
var ErrInvalidSignature = errors.New("invalid session token signature", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when the token is past its validity.
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthorized is returned when a session is required and none is present.
var ErrUnauthorized = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when a session lacks the required permission.
var ErrForbidden = errors.New("permission denied", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrNotImpersonating is returned when ending impersonation on a session
// without an impersonation overlay.
var ErrNotImpersonating = errors.New("session is not impersonating", errors.CategoryBadInput).
	WithTextCode(TextCodeNotImpersonating).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCredentials is returned by the login flows. It does not tell
// apart unknown accounts from wrong passwords.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrInactiveAccount is returned for deactivated members, admins or workspaces.
var ErrInactiveAccount = errors.New("account is inactive", errors.CategoryAuth).
	WithTextCode(TextCodeInactiveAccount).
	WithCode(errors.CodeForbidden)

// ErrTooManyLoginAttempts is returned while an account is cooling down.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryAuth).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(errors.CodeForbidden)

// ErrInsecureSecret is a configuration error: production requires a strong
// signing secret.
var ErrInsecureSecret = errors.New("signing secret missing or too short", errors.CategoryValidation).
	WithTextCode(TextCodeInsecureSecret).
	WithCode(errors.CodeInternal)

var ErrWorkspaceNotFound = errors.New("workspace not found", errors.CategoryNotFound).
	WithTextCode(TextCodeWorkspaceNotFound).
	WithCode(errors.CodeNotFound)

var ErrMemberNotFound = errors.New("workspace member not found", errors.CategoryNotFound).
	WithTextCode(TextCodeMemberNotFound).
	WithCode(errors.CodeNotFound)

var ErrPlatformAdminNotFound = errors.New("platform admin not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAdminNotFound).
	WithCode(errors.CodeNotFound)

// IsMalformed reports whether err is a malformed token error.
func IsMalformed(err error) bool { return hasTextCode(err, TextCodeTokenMalformed) }

// IsInvalidSignature reports whether err is a signature verification error.
func IsInvalidSignature(err error) bool { return hasTextCode(err, TextCodeInvalidSignature) }

// IsTokenExpired reports whether err is an expired token error.
func IsTokenExpired(err error) bool { return hasTextCode(err, TextCodeTokenExpired) }

func IsUnauthorized(err error) bool { return hasTextCode(err, TextCodeUnauthorized) }

func IsForbidden(err error) bool { return hasTextCode(err, TextCodeForbidden) }

func IsNotImpersonating(err error) bool { return hasTextCode(err, TextCodeNotImpersonating) }

func IsInvalidCredentials(err error) bool { return hasTextCode(err, TextCodeInvalidCredentials) }

func IsInactiveAccount(err error) bool { return hasTextCode(err, TextCodeInactiveAccount) }

func IsTooManyLoginAttempts(err error) bool { return hasTextCode(err, TextCodeTooManyAttempts) }

func IsInsecureSecret(err error) bool { return hasTextCode(err, TextCodeInsecureSecret) }

// IsNotFound reports whether err is one of the record lookup errors.
func IsNotFound(err error) bool {
	return hasTextCode(err, TextCodeWorkspaceNotFound) ||
		hasTextCode(err, TextCodeMemberNotFound) ||
		hasTextCode(err, TextCodeAdminNotFound)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// withSource clones a sentinel and attaches the underlying cause.
func withSource(base *errors.Error, source error, meta map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	if source != nil {
		clone.Source = source
	}
	if len(meta) > 0 {
		clone = clone.WithMetadata(meta)
	}
	return clone
}
