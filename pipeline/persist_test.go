package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalystvision/core/video"
)

func TestAggregationMethodDefaultsToMean(t *testing.T) {
	require.Equal(t, video.AggregateMean, aggregationMethod(video.ProcessingOptions{}))
}

func TestAggregationMethodHonoursJobOverride(t *testing.T) {
	opts := video.ProcessingOptions{EmbeddingAggregation: video.AggregateAttention}
	require.Equal(t, video.AggregateAttention, aggregationMethod(opts))
}
