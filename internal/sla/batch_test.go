package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateAllUsesSingleNow(t *testing.T) {
	set := NewPolicySet([]Policy{
		{StageID: "nda", MaxHours: 48, WarningThresholdHours: 24},
		{StageID: "closing", MaxHours: 12},
	})
	now := base.Add(100 * time.Hour)

	items := []Item{
		{ID: "d1", StageID: "nda", StageEnteredAt: now.Add(-10 * time.Hour)},
		{ID: "d2", StageID: "nda", StageEnteredAt: now.Add(-25 * time.Hour)},
		{ID: "d3", StageID: "nda", StageEnteredAt: now.Add(-50 * time.Hour)},
		{ID: "d4", StageID: "closing", StageEnteredAt: now.Add(-3 * time.Hour)},
		{ID: "d5", StageID: "prospecting", StageEnteredAt: now.Add(-900 * time.Hour)},
	}

	results := EvaluateAll(items, now, set)
	require.Len(t, results, 5)

	assert.Equal(t, StatusOK, results[0].Status)
	assert.Equal(t, StatusWarning, results[1].Status)
	assert.Equal(t, StatusOverdue, results[2].Status)
	assert.Equal(t, StatusOK, results[3].Status)
	assert.Equal(t, StatusOK, results[4].Status)

	require.NotNil(t, results[0].HoursRemaining)
	assert.Equal(t, 38, *results[0].HoursRemaining)
	require.NotNil(t, results[2].HoursRemaining)
	assert.Equal(t, 0, *results[2].HoursRemaining)
	assert.Equal(t, 9, *results[3].HoursRemaining)
	assert.Nil(t, results[4].HoursRemaining, "stage without policy has no budget")
	assert.Equal(t, 900, results[4].HoursInStage)

	assert.Equal(t, Summary{OK: 3, Warning: 1, Overdue: 1}, Summarize(results))
}

func TestPolicySetFor(t *testing.T) {
	set := NewPolicySet([]Policy{
		{StageID: "nda", MaxHours: 10},
		{StageID: "nda", MaxHours: 20},
	})
	assert.Equal(t, 1, set.Len())

	p := set.For("nda")
	require.NotNil(t, p)
	assert.Equal(t, 20, p.MaxHours)
	assert.Nil(t, set.For("unknown"))

	var empty PolicySet
	assert.Nil(t, empty.For("nda"))
}
