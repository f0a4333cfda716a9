package publish

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		kind       Kind
		statusCode int
		expected   bool
	}{
		{"invalid", NewInvalidNameError("ab", "too_short"), KindInvalidName, 422, true},
		{"reserved", NewReservedNameError("admin"), KindReservedName, 422, true},
		{"taken", NewNameTakenError("studio"), KindNameTaken, 409, true},
		{"unauthorized", NewUnauthorizedError("p1"), KindUnauthorized, 403, true},
		{"not found", NewProjectNotFoundError("p1"), KindProjectNotFound, 404, true},
		{"invalid input", NewInvalidInputError(errors.New("project name is required")), KindInvalidInput, 422, true},
		{"storage", NewStorageError("claim name", errors.New("disk full")), KindStorageFailure, 503, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.statusCode, tt.err.Kind.StatusCode())
			assert.Equal(t, tt.expected, tt.err.Kind.Expected())
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("publish: %w", NewNameTakenError("studio"))

	assert.Equal(t, KindNameTaken, KindOf(err))
	assert.True(t, IsKind(err, KindNameTaken))
	assert.False(t, IsKind(err, KindStorageFailure))
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindUnknown))
}

func TestStorageError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageError("load project", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Kind.Retryable())
	assert.False(t, KindNameTaken.Retryable(), "conflicts are never retried automatically")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "name_taken", KindNameTaken.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
