package allocator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

func TestChoose_PiecewiseBands(t *testing.T) {
	p := New()
	d := DatasetDefaults{Base: 3}

	cases := []struct {
		tokens int
		want   int
	}{
		{10, 2},
		{75, 3},
		{150, 4},  // b+1 = 4
		{250, 5},  // b+2 = 5
		{400, 6},  // b+3 = 6
	}
	for _, c := range cases {
		got := p.Choose(pipeline.Chunk{TokenCount: c.tokens, ChunkIndex: 0}, d)
		require.Equal(t, c.want, got, "tokens=%d", c.tokens)
	}
}

func TestChoose_LateDocumentCompensation(t *testing.T) {
	p := New()
	d := DatasetDefaults{Base: 3}
	early := p.Choose(pipeline.Chunk{TokenCount: 150, ChunkIndex: 4}, d)
	late := p.Choose(pipeline.Chunk{TokenCount: 150, ChunkIndex: 5}, d)
	require.Equal(t, early+1, late)
}

func TestChoose_ClampedToEight(t *testing.T) {
	p := New()
	d := DatasetDefaults{Base: 10}
	got := p.Choose(pipeline.Chunk{TokenCount: 500, ChunkIndex: 10}, d)
	require.Equal(t, 8, got)
}

func TestChoose_ClampedToOne(t *testing.T) {
	p := New()
	d := DatasetDefaults{Base: -10}
	got := p.Choose(pipeline.Chunk{TokenCount: 500, ChunkIndex: 0}, d)
	require.Equal(t, 1, got)
}
