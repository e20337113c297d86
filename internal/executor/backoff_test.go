package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 5 * time.Second, Exponent: 2}

	assert.Equal(t, 1*time.Second, b.Delay(0))
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(2))
	assert.Equal(t, 5*time.Second, b.Delay(3), "clamped to max")
	assert.Equal(t, 5*time.Second, b.Delay(10))
}

func TestBackoffDelay_NegativeAttempt(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 5 * time.Second, Exponent: 2}
	assert.Equal(t, time.Second, b.Delay(-3))
}

func TestBackoffDelay_OverflowClampsToMax(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 5 * time.Second, Exponent: 10}
	assert.Equal(t, 5*time.Second, b.Delay(500))
}
