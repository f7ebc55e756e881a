package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsufficientStockErrorCarriesQuantities(t *testing.T) {
	err := error(&InsufficientStockError{LotID: "LOT-1", Available: 12.5, Requested: 20})

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "insufficient stock for lot LOT-1: available=12.5, requested=20", err.Error())

	var typed *InsufficientStockError
	assert.True(t, errors.As(fmt.Errorf("outbound: %w", err), &typed))
	assert.Equal(t, 12.5, typed.Available)
}

func TestStoreErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Store("list", "Lots", cause)

	assert.True(t, errors.Is(err, ErrStore))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "store list Lots: dial tcp: timeout", err.Error())
	assert.Nil(t, Store("list", "Lots", nil))
}

func TestMessageStripsKindPrefix(t *testing.T) {
	assert.Equal(t, `lot "L-9"`, Message(NotFound("lot", "L-9")))
	assert.Equal(t, "weightOut must be greater than zero", Message(Validation("weightOut must be greater than zero")))
	assert.Equal(t, "", Message(nil))
}

func TestUpstreamWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Upstream("cloudinary", cause)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, cause))
}
