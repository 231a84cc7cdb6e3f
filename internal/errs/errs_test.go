package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesOnKind(t *testing.T) {
	err := NotFound("order order_1 does not exist")
	assert.ErrorIs(t, err, NotFound("different message"))
	assert.NotErrorIs(t, err, Validation(""))

	wrapped := fmt.Errorf("handling webhook: %w", err)
	assert.ErrorIs(t, wrapped, NotFound(""))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := GatewayUnavailable("provider call failed", "", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "provider call failed")
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("missing field"), http.StatusBadRequest},
		{Authentication("bad signature"), http.StatusUnauthorized},
		{GatewayUnavailable("down", "", nil), http.StatusInternalServerError},
		{NotFound("no such order"), http.StatusNotFound},
		{StateConflict("forbidden transition"), http.StatusConflict},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.HTTPStatus(), tc.err.Message)
	}
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("outer: %w", StateConflict("busy")))
	assert.True(t, ok)
	assert.Equal(t, KindStateConflict, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestValidationf(t *testing.T) {
	err := Validationf("no session adapter for gateway %q", "bogus")
	assert.Equal(t, `no session adapter for gateway "bogus"`, err.Message)
	assert.Equal(t, KindValidation, err.Kind)
}
