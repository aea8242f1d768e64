package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/catalystvision/core/cache"
	"github.com/catalystvision/core/clients"
)

type countingEmbedModel struct {
	fakeModel
	calls int
}

func (m *countingEmbedModel) Embedding(ctx context.Context, text string, kind clients.EmbeddingKind) ([]float32, error) {
	m.calls++
	return make([]float32, 4), nil
}

func TestEmbedMemoizesIdenticalDescriptionWithinAJob(t *testing.T) {
	model := &countingEmbedModel{}
	o := New(Deps{Model: model, Cache: cache.New(time.Minute, time.Minute)})

	v1, err := o.embed(context.Background(), "job-1", "a red car")
	require.NoError(t, err)
	v2, err := o.embed(context.Background(), "job-1", "a red car")
	require.NoError(t, err)

	require.Equal(t, v1, v2)
	require.Equal(t, 1, model.calls)
}

func TestEmbedBypassesCacheWhenNil(t *testing.T) {
	model := &countingEmbedModel{}
	o := New(Deps{Model: model})

	_, err := o.embed(context.Background(), "job-1", "a red car")
	require.NoError(t, err)
	_, err = o.embed(context.Background(), "job-1", "a red car")
	require.NoError(t, err)

	require.Equal(t, 2, model.calls)
}

func TestEmbedDoesNotConfuseDifferentJobsSameDescription(t *testing.T) {
	model := &countingEmbedModel{}
	o := New(Deps{Model: model, Cache: cache.New(time.Minute, time.Minute)})

	_, err := o.embed(context.Background(), "job-1", "a red car")
	require.NoError(t, err)
	_, err = o.embed(context.Background(), "job-2", "a red car")
	require.NoError(t, err)

	require.Equal(t, 2, model.calls)
}
