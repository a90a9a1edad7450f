package errs

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	derived := ErrValidation.WithDetail("field x is missing")
	assert.Empty(t, ErrValidation.Detail)
	assert.Contains(t, derived.Detail, "field x")
	assert.Equal(t, ValidationError, derived.Code)
}

func TestWrapMsgKeepsCode(t *testing.T) {
	err := ErrStore.WrapMsg("hincrby play", "track", "t1")
	require.Error(t, err)

	assert.Equal(t, StoreError, Code(err))
	assert.True(t, Is(err, ErrStore))
	assert.True(t, stderrors.Is(err, ErrStore))
	assert.Contains(t, err.Error(), "track=t1")
}

func TestIsRejectsOtherCodes(t *testing.T) {
	assert.False(t, Is(nil, ErrStore))
	assert.False(t, Is(stderrors.New("plain"), ErrStore))
	assert.False(t, Is(ErrValidation.Wrap(), ErrStore))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          ErrValidation.Wrap(),
		http.StatusNotFound:            ErrRecordNotFound.Wrap(),
		http.StatusForbidden:           ErrNoPermission.Wrap(),
		http.StatusUnauthorized:        ErrToken.Wrap(),
		http.StatusConflict:            ErrConflict.Wrap(),
		http.StatusServiceUnavailable:  ErrStore.Wrap(),
		http.StatusInternalServerError: stderrors.New("anything else"),
	}
	for want, err := range cases {
		assert.Equal(t, want, HTTPStatus(err))
	}
}
