package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCostSummaryAdd(t *testing.T) {
	total := CostSummary{InputTokens: 10, OutputTokens: 5}
	total.Add(CostSummary{InputTokens: 3, OutputTokens: 2, CacheReadTokens: 1})

	assert.Equal(t, int64(13), total.InputTokens)
	assert.Equal(t, int64(7), total.OutputTokens)
	assert.Equal(t, int64(1), total.CacheReadTokens)
}

func TestWorkerResultOutcomes(t *testing.T) {
	r := WorkerResult{TaskNumber: 1, Outcome: OutcomeCompleted}
	assert.Equal(t, OutcomeCompleted, r.Outcome)
	assert.NotEqual(t, OutcomeFailed, r.Outcome)
}
