package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeAndParseCode(t *testing.T) {
	code := MakeCode(ServiceDocQA, CategoryResource, 7)
	assert.Equal(t, 2104007, code)

	s, c, seq := ParseCode(code)
	assert.Equal(t, ServiceDocQA, s)
	assert.Equal(t, CategoryResource, c)
	assert.Equal(t, 7, seq)
}

func TestErrnoWithCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := ErrBackendUnavailable.WithCause(cause)

	assert.True(t, stderrors.Is(err, ErrBackendUnavailable))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, ErrBackendUnavailable.Unwrap(), "original must not be mutated")
}

func TestErrnoWrappedByFmt(t *testing.T) {
	err := fmt.Errorf("generate: %w", ErrBackendTimeout)

	assert.True(t, stderrors.Is(err, ErrBackendTimeout))
	assert.False(t, stderrors.Is(err, ErrBackendUnavailable))
	assert.True(t, IsCode(err, ErrBackendTimeout.Code))
	assert.Equal(t, ErrBackendTimeout.Code, FromError(err).Code)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	e := FromError(stderrors.New("boom"))
	require.NotNil(t, e)
	assert.Equal(t, ErrInternal.Code, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus())
}

func TestMessageLanguage(t *testing.T) {
	assert.Equal(t, "Session not found", ErrSessionNotFound.Message("en"))
	assert.Equal(t, "会话不存在", ErrSessionNotFound.Message("zh-CN"))
}

func TestWithMessage(t *testing.T) {
	e := ErrInvalidParam.WithMessagef("%s is required", "query")
	assert.Equal(t, "query is required", e.MessageEN)
	assert.Equal(t, "Invalid parameter", ErrInvalidParam.MessageEN)
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus())
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(&Errno{Code: ErrInternal.Code, MessageEN: "dup"})
	})
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(ErrIndexUnbuilt.Code)
	require.True(t, ok)
	assert.Same(t, ErrIndexUnbuilt, e)
}
