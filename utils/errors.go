package utils

import (
	"errors"
	"net/http"
)

// Kind classifies an AppError and decides its HTTP status.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthenticated
	KindAccountDisabled
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindUnexpected
)

// Status maps a kind to the HTTP status surfaced to clients.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccountDisabled, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnexpected:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAccountDisabled:
		return "account_disabled"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindUnexpected:
		return "unexpected"
	}
	return "unknown"
}

// AppError is the typed error every service returns. Code is stable and machine readable;
// Message is safe to show to users; Err carries the underlying cause for logs.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on kind and code so a wrapped copy still equals its sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// Wrap returns a copy of e carrying err as its cause.
func (e *AppError) Wrap(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// WithMessage returns a copy of e with a more specific user-facing message.
func (e *AppError) WithMessage(msg string) *AppError {
	cp := *e
	cp.Message = msg
	return &cp
}

func newError(kind Kind, code, msg string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: msg}
}

// Validation builds a 400 error for malformed or out-of-range input.
func Validation(code, msg string) *AppError {
	return newError(KindValidation, code, msg)
}

// Unexpected wraps an unanticipated failure; its cause is never shown outside debug mode.
func Unexpected(err error) *AppError {
	return ErrInternal.Wrap(err)
}

// AsAppError extracts the AppError in err's chain, treating anything else as unexpected.
func AsAppError(err error) *AppError {
	var app *AppError
	if errors.As(err, &app) {
		return app
	}
	return Unexpected(err)
}

var (
	ErrInvalidRequest       = Validation("INVALID_REQUEST", "request payload is invalid")
	ErrInvalidID            = Validation("INVALID_ID", "id must be a positive integer")
	ErrNoFieldsProvided     = Validation("NO_FIELDS_PROVIDED", "no fields provided for update")
	ErrInvalidParentComment = Validation("INVALID_PARENT_COMMENT", "parent comment belongs to a different article")
	ErrCommentDepthExceeded = Validation("COMMENT_DEPTH_EXCEEDED", "replies cannot be replied to")
	ErrPasswordMismatch     = Validation("PASSWORD_MISMATCH", "passwords do not match")
	ErrWeakPassword         = Validation("WEAK_PASSWORD", "password needs 8-128 characters with upper, lower case letters and digits")
	ErrInvalidOAuthState    = Validation("INVALID_OAUTH_STATE", "oauth state is invalid or expired")
	ErrInvalidRole          = Validation("INVALID_ROLE", "role must be USER, MODERATOR or ADMIN")

	ErrUnauthenticated    = newError(KindUnauthenticated, "UNAUTHENTICATED", "authentication required")
	ErrInvalidToken       = newError(KindUnauthenticated, "INVALID_TOKEN", "token is invalid")
	ErrTokenExpired       = newError(KindUnauthenticated, "TOKEN_EXPIRED", "token has expired, please sign in again")
	ErrTokenRevoked       = newError(KindUnauthenticated, "TOKEN_REVOKED", "token has been revoked")
	ErrTokenUserGone      = newError(KindUnauthenticated, "USER_NOT_FOUND", "account no longer exists")
	ErrInvalidCredentials = newError(KindUnauthenticated, "INVALID_CREDENTIALS", "email or password is incorrect")
	ErrInvalidOldPassword = newError(KindUnauthenticated, "INVALID_OLD_PASSWORD", "current password is incorrect")
	ErrAccountDisabled    = newError(KindAccountDisabled, "ACCOUNT_DISABLED", "account is disabled, contact an administrator")

	ErrForbidden        = newError(KindForbidden, "FORBIDDEN", "insufficient permissions")
	ErrArticleForbidden = newError(KindForbidden, "ARTICLE_FORBIDDEN", "not allowed to access this article")
	ErrCommentForbidden = newError(KindForbidden, "COMMENT_FORBIDDEN", "not allowed to modify this comment")

	ErrArticleNotFound       = newError(KindNotFound, "ARTICLE_NOT_FOUND", "article not found")
	ErrCategoryNotFound      = newError(KindNotFound, "CATEGORY_NOT_FOUND", "category not found")
	ErrTagNotFound           = newError(KindNotFound, "TAG_NOT_FOUND", "tag not found")
	ErrCommentNotFound       = newError(KindNotFound, "COMMENT_NOT_FOUND", "comment not found")
	ErrParentCommentNotFound = newError(KindNotFound, "PARENT_COMMENT_NOT_FOUND", "parent comment not found")
	ErrUserNotFound          = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrRouteNotFound         = newError(KindNotFound, "ROUTE_NOT_FOUND", "api route not found")
	ErrOAuthProvider         = newError(KindNotFound, "OAUTH_PROVIDER_UNAVAILABLE", "oauth provider is not configured")

	ErrSlugExists         = newError(KindConflict, "SLUG_EXISTS", "slug is already in use")
	ErrEmailExists        = newError(KindConflict, "EMAIL_EXISTS", "email is already registered")
	ErrUsernameExists     = newError(KindConflict, "USERNAME_EXISTS", "username is already taken")
	ErrCategoryNameExists = newError(KindConflict, "CATEGORY_NAME_EXISTS", "category name is already in use")
	ErrCategorySlugExists = newError(KindConflict, "CATEGORY_SLUG_EXISTS", "category slug is already in use")
	ErrTagNameExists      = newError(KindConflict, "TAG_NAME_EXISTS", "tag name is already in use")
	ErrTagSlugExists      = newError(KindConflict, "TAG_SLUG_EXISTS", "tag slug is already in use")
	ErrCategoryInUse      = newError(KindConflict, "CATEGORY_IN_USE", "category still has articles")
	ErrTagInUse           = newError(KindConflict, "TAG_IN_USE", "tag is still attached to articles")
	ErrAlreadyLiked       = newError(KindConflict, "ALREADY_LIKED", "article was liked concurrently, retry the request")

	ErrRateLimited = newError(KindRateLimited, "RATE_LIMITED", "too many requests, slow down")
	ErrInternal    = newError(KindUnexpected, "INTERNAL_SERVER_ERROR", "internal server error")
)
