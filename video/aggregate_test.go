package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregateMean(t *testing.T) {
	vectors := [][]float32{{1, 2, 3}, {3, 4, 5}}
	got := Aggregate(AggregateMean, vectors, nil)
	require.Equal(t, []float32{2, 3, 4}, got)
}

func TestAggregateMax(t *testing.T) {
	vectors := [][]float32{{1, 5, 3}, {3, 4, 9}}
	got := Aggregate(AggregateMax, vectors, nil)
	require.Equal(t, []float32{3, 5, 9}, got)
}

func TestAggregateAttentionFallsBackToMeanWhenWeightsZero(t *testing.T) {
	vectors := [][]float32{{1, 2}, {3, 4}}
	got := Aggregate(AggregateAttention, vectors, []float64{0, 0})
	require.Equal(t, []float32{2, 3}, got)
}

func TestAggregateAttentionWeighsByConfidence(t *testing.T) {
	vectors := [][]float32{{0, 0}, {10, 10}}
	got := Aggregate(AggregateAttention, vectors, []float64{3, 1})
	require.InDelta(t, 2.5, got[0], 0.001)
	require.InDelta(t, 2.5, got[1], 0.001)
}

func TestContentHashDeterministic(t *testing.T) {
	v := []float32{1, 2, 3}
	require.Equal(t, ContentHash(v), ContentHash(v))
	require.NotEqual(t, ContentHash(v), ContentHash([]float32{1, 2, 4}))
	require.Len(t, ContentHash(v), 64)
}

func TestStateTransitions(t *testing.T) {
	require.True(t, StateWaiting.CanTransitionTo(StateActive))
	require.True(t, StateWaiting.CanTransitionTo(StateCancelled))
	require.True(t, StateActive.CanTransitionTo(StateCompleted))
	require.True(t, StateFailed.CanTransitionTo(StateWaiting))
	require.False(t, StateCompleted.CanTransitionTo(StateWaiting))
	require.False(t, StateCancelled.CanTransitionTo(StateActive))
	require.True(t, StateCompleted.IsTerminal())
}
