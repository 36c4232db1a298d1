package sferr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFmt(t *testing.T) {
	err := Fmt("bad value %d", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad value 42")
	assert.Contains(t, err.Error(), "At sferr/sferr_test.go:")
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil))

	sentinel := errors.New("sentinel")
	err := Wrap(sentinel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentinel")
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, sentinel, Unwrap(err))
}

func TestWrapf(t *testing.T) {
	assert.NoError(t, Wrapf(nil, "context"))

	sentinel := errors.New("sentinel")
	err := Wrapf(sentinel, "while doing %s", "work")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentinel; while doing work")
	assert.True(t, errors.Is(err, sentinel))
}

func TestWrapAccumulatesContext(t *testing.T) {
	sentinel := errors.New("inner")
	err := Wrapf(sentinel, "first")
	err = Wrapf(err, "second")
	assert.Contains(t, err.Error(), "inner; first; second")
	assert.True(t, errors.Is(err, sentinel))

	var ewc *ErrorWithContext
	require.True(t, errors.As(err, &ewc))
	assert.Len(t, ewc.CallStack, 2)
}

func TestUnwrapPassesThroughForeignErrors(t *testing.T) {
	sentinel := errors.New("plain")
	assert.Equal(t, sentinel, Unwrap(sentinel))
}
