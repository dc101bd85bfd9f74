package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Minute})
	boom := errors.New("smtp down")

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, CBOpen, cb.State())

	// fast-fail while open: fn must not run
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Millisecond})

	require.Error(t, cb.Execute(func() error { return errors.New("fail") }))
	assert.Equal(t, CBOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, CBHalfOpen, cb.State())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCBConfig())

	for i := 0; i < 4; i++ {
		_ = cb.Execute(func() error { return errors.New("fail") })
	}
	require.NoError(t, cb.Execute(func() error { return nil }))

	// counter was reset: four more failures still do not trip the default threshold of five
	for i := 0; i < 4; i++ {
		_ = cb.Execute(func() error { return errors.New("fail") })
	}
	assert.Equal(t, CBClosed, cb.State())
}
