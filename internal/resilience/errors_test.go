package resilience

import (
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestTransientDetectsWrappedMarker(t *testing.T) {
	inner := NewTransientError(eris.New("throttled"), 429)
	wrapped := fmt.Errorf("fetch keywords: %w", inner)

	assert.True(t, Transient(inner))
	assert.True(t, Transient(wrapped))
}

func TestTransientRejectsPlainErrors(t *testing.T) {
	assert.False(t, Transient(nil))
	assert.False(t, Transient(eris.New("invalid credentials")))
}

func TestTransientErrorCarriesStatus(t *testing.T) {
	te := NewTransientError(eris.New("unavailable"), 503)
	assert.Equal(t, 503, te.StatusCode)
	assert.Equal(t, "unavailable", te.Error())
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404} {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}
