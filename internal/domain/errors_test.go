package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuralClassification(t *testing.T) {
	err := Structural(ErrNoPath)
	assert.True(t, IsStructural(err))
	assert.False(t, IsTransient(err))
	assert.True(t, errors.Is(err, ErrNoPath), "wrapping preserves the sentinel")
}

func TestTransientClassification(t *testing.T) {
	err := Transient(errors.New("connection reset"))
	assert.True(t, IsTransient(err))
	assert.False(t, IsStructural(err))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("executor: leg 1: %w", Structural(ErrNoPath))
	assert.True(t, IsStructural(err))
	assert.True(t, errors.Is(err, ErrNoPath))
}

func TestNilPassthrough(t *testing.T) {
	assert.NoError(t, Structural(nil))
	assert.NoError(t, Transient(nil))
}

func TestUnclassifiedIsNeither(t *testing.T) {
	err := errors.New("plain")
	assert.False(t, IsStructural(err))
	assert.False(t, IsTransient(err))
}
