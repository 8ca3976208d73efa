package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidInput: http.StatusBadRequest,
		KindUnauthorized: http.StatusForbidden,
		KindExpired:      http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusBadRequest,
		KindStorage:      http.StatusInternalServerError,
		Kind(99):         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus(), kind.String())
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := NotFound("post not found")
	wrapped := fmt.Errorf("load: %w", inner)

	err := Storage("read post", wrapped)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "post not found", Message(err))
}

func TestStorageHidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Storage("read post", cause)

	require.Error(t, err)
	assert.True(t, Is(err, KindStorage))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", Message(err))
	assert.Equal(t, "internal error", Message(cause))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindStorage, "noop", nil))
	assert.False(t, Is(nil, KindStorage))
}
