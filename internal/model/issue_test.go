package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueBuilders(t *testing.T) {
	t.Parallel()

	i := Block("COST-PRICE-TOO-OLD", "too old").
		WithLine("L1").
		WithProduct("P1").
		WithChosenOffer("O1").
		WithAge(40.126).
		WithDetail("pack_unit", "kg")

	assert.True(t, i.IsBlock())
	assert.Equal(t, "L1", i.LineID)
	assert.Equal(t, "P1", i.ProductID)
	assert.Equal(t, "O1", i.ChosenOfferID)
	require.NotNil(t, i.AgeDays)
	assert.InDelta(t, 40.13, *i.AgeDays, 1e-9)
	assert.Equal(t, "kg", i.Details["pack_unit"])

	w := Warning("SRC-PRICE-STALE", "stale").WithOffer("O2")
	assert.False(t, w.IsBlock())
	assert.Equal(t, "O2", w.OfferID)
}

func TestIssueDetailsAreCopied(t *testing.T) {
	t.Parallel()

	base := Warning("X", "x").WithDetail("a", 1)
	derived := base.WithDetail("b", 2)

	assert.Len(t, base.Details, 1)
	assert.Len(t, derived.Details, 2)
}

func TestIssues(t *testing.T) {
	t.Parallel()

	var is Issues
	assert.False(t, is.HasBlock())

	is.Add(Warning("SRC-PRICE-STALE", "stale"))
	is.Add(Warning("COST-PRICE-STALE", "stale"))
	assert.False(t, is.HasBlock())

	is.Add(Block("COST-ANOMALY-FLAG", "anomaly"))
	assert.True(t, is.HasBlock())
	assert.Equal(t, 2, is.CountCode("STALE"))
	assert.Equal(t, 1, is.CountCode("ANOMALY"))
	assert.Len(t, is.ByCode("SRC-PRICE-STALE"), 1)
}
