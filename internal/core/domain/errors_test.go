package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrInvalidPayload", ErrInvalidPayload},
		{"ErrUnsupported", ErrUnsupported},
		{"ErrInvalidOperation", ErrInvalidOperation},
		{"ErrLockTimeout", ErrLockTimeout},
		{"ErrLockReleased", ErrLockReleased},
		{"ErrStorageUnavailable", ErrStorageUnavailable},
		{"ErrUnknownType", ErrUnknownType},
		{"ErrWrongStorage", ErrWrongStorage},
		{"ErrUserNotFound", ErrUserNotFound},
		{"ErrAlreadyLoaded", ErrAlreadyLoaded},
		{"ErrReloadUnsupported", ErrReloadUnsupported},
		{"ErrPluginNotFound", ErrPluginNotFound},
		{"ErrRegistrationClosed", ErrRegistrationClosed},
		{"ErrNotInitialized", ErrNotInitialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrStorageUnavailable_Message(t *testing.T) {
	assert.Equal(t, "cannot access user storage", ErrStorageUnavailable.Error())
}

func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("loading plugin %q: %w", "feed", ErrPluginNotFound)

	assert.True(t, errors.Is(wrapped, ErrPluginNotFound))
	assert.False(t, errors.Is(wrapped, ErrAlreadyLoaded))
	assert.Contains(t, wrapped.Error(), "feed")
}
