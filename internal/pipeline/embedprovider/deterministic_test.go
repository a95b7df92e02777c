package embedprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

func TestDeterministic_SameTextSameVector(t *testing.T) {
	d := NewDeterministic(32, true, pipeline.ProviderGemini)
	a, err := d.EmbedBatch(context.Background(), []string{"the quick brown fox"})
	require.NoError(t, err)
	b, err := d.EmbedBatch(context.Background(), []string{"the quick brown fox"})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDeterministic_EmptyTextIsZeroVector(t *testing.T) {
	d := NewDeterministic(16, false, pipeline.ProviderOpenAI)
	vecs, err := d.EmbedBatch(context.Background(), []string{""})
	require.NoError(t, err)
	for _, v := range vecs[0] {
		require.Zero(t, v)
	}
}

func TestDeterministic_DimensionMatchesConfig(t *testing.T) {
	d := NewDeterministic(48, false, pipeline.ProviderGemini)
	vecs, err := d.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vecs[0], 48)
}
