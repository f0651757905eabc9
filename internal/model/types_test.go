package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluginCategoryOutcome(t *testing.T) {
	t.Run("Positive decision is Ok for every category", func(t *testing.T) {
		assert.Equal(t, OutcomeOk, CategoryReader.Outcome(true))
		assert.Equal(t, OutcomeOk, CategoryAnalysis.Outcome(true))
	})

	t.Run("Reader rejection means the input is exhausted", func(t *testing.T) {
		assert.Equal(t, OutcomeNoEvents, CategoryReader.Outcome(false))
	})

	t.Run("Analysis rejection filters the event", func(t *testing.T) {
		assert.Equal(t, OutcomeFilterFailed, CategoryAnalysis.Outcome(false))
	})
}

func TestEventOutcomeString(t *testing.T) {
	assert.Equal(t, "Ok", OutcomeOk.String())
	assert.Equal(t, "FilterFailed", OutcomeFilterFailed.String())
	assert.Equal(t, "NoEvents", OutcomeNoEvents.String())
	assert.Equal(t, "Unknown", EventOutcome(99).String())
}
