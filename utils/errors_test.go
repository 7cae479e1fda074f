package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindValidation.Status())
	assert.Equal(t, http.StatusUnauthorized, KindUnauthenticated.Status())
	assert.Equal(t, http.StatusForbidden, KindAccountDisabled.Status())
	assert.Equal(t, http.StatusForbidden, KindForbidden.Status())
	assert.Equal(t, http.StatusNotFound, KindNotFound.Status())
	assert.Equal(t, http.StatusConflict, KindConflict.Status())
	assert.Equal(t, http.StatusTooManyRequests, KindRateLimited.Status())
	assert.Equal(t, http.StatusInternalServerError, KindUnexpected.Status())
}

func TestWrappedErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("duplicate key")
	err := fmt.Errorf("create article: %w", ErrSlugExists.Wrap(cause))

	assert.ErrorIs(t, err, ErrSlugExists)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrEmailExists)
}

func TestSameCodeDifferentKindDoesNotMatch(t *testing.T) {
	assert.NotErrorIs(t, ErrTokenUserGone, ErrUserNotFound)
}

func TestAsAppError(t *testing.T) {
	app := AsAppError(ErrTagNotFound)
	assert.Equal(t, "TAG_NOT_FOUND", app.Code)

	raw := errors.New("boom")
	app = AsAppError(raw)
	assert.Equal(t, KindUnexpected, app.Kind)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", app.Code)
	assert.ErrorIs(t, app, raw)
}

func TestWithMessageKeepsIdentity(t *testing.T) {
	err := ErrInvalidRequest.WithMessage("title is required")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, "title is required", err.Message)
	assert.Equal(t, "request payload is invalid", ErrInvalidRequest.Message)
}
