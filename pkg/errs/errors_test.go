package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeInvalidInput, "bad input")
	assert.Equal(t, CodeInvalidInput, err.Code)
	assert.Equal(t, "bad input", err.Message)
	assert.NotNil(t, err.Details)
}

func TestError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := New(CodeUnknownDevice, "device not found")
		assert.Equal(t, "[UNKNOWN_DEVICE] device not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		err := Wrap(errors.New("exit status 1"), CodeDriverUnavailable, "query vulkan")
		assert.Equal(t, "[DRIVER_UNAVAILABLE] query vulkan: exit status 1", err.Error())
	})

	t.Run("with field", func(t *testing.T) {
		err := New(CodeUnsupportedConfiguration, "unknown variant").WithDetails("field", "variant")
		assert.Equal(t, "[UNSUPPORTED_CONFIGURATION] unknown variant (field variant)", err.Error())
	})
}

func TestError_Is(t *testing.T) {
	sentinel := NewDomain("device", CodeUnknownDevice, "unknown device")
	derived := sentinel.WithDetails("identifier", "vulkan://9")

	assert.True(t, errors.Is(derived, sentinel))
	assert.True(t, errors.Is(fmt.Errorf("resolve: %w", derived), sentinel))
	assert.False(t, errors.Is(derived, New(CodeDriverUnavailable, "x")))
	assert.False(t, errors.Is(derived, errors.New("unknown device")))
}

func TestError_WithDetailsDoesNotMutate(t *testing.T) {
	sentinel := New(CodeUnsupportedConfiguration, "unsupported")
	_ = sentinel.WithDetails("field", "precision")

	assert.Empty(t, sentinel.Details)
	assert.Empty(t, sentinel.Field())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(CodeDriverUnavailable, "enumerate").WithCause(cause)

	assert.True(t, errors.Is(err, cause))
}

func TestAs(t *testing.T) {
	_, ok := As(nil)
	assert.False(t, ok)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)

	wrapped := fmt.Errorf("outer: %w", New(CodeCatalogInvalid, "bad catalog"))
	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeCatalogInvalid, e.Code)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeUnknownDevice, CodeOf(New(CodeUnknownDevice, "x")))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(New(CodeUnrecognizedHardware, "no rule")))
	assert.True(t, IsFatal(New(CodeUnknownDevice, "x")))
	assert.True(t, IsFatal(errors.New("plain")))
}
