package coverage

import (
	"fmt"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// lengthBucket classifies a chunk by token count: short <100 tokens,
// medium <200, long otherwise.
func lengthBucket(tokenCount int) pipeline.LengthBucket {
	switch {
	case tokenCount < 100:
		return pipeline.LengthShort
	case tokenCount < 200:
		return pipeline.LengthMedium
	default:
		return pipeline.LengthLong
	}
}

// positionBucket classifies a chunk by its position within its document:
// beginning <33%, middle <67%, end otherwise. docLen is the number of
// chunks belonging to the same document as this chunk.
func positionBucket(chunkIndex, docLen int) pipeline.PositionBucket {
	if docLen <= 1 {
		return pipeline.PositionBeginning
	}
	frac := float64(chunkIndex) / float64(docLen)
	switch {
	case frac < 0.33:
		return pipeline.PositionBeginning
	case frac < 0.67:
		return pipeline.PositionMiddle
	default:
		return pipeline.PositionEnd
	}
}

func bucketAnalysis(chunks []pipeline.Chunk, maxSim []float64, tau float64) pipeline.ChunkAnalysis {
	docLens := make(map[string]int)
	for _, c := range chunks {
		docLens[c.DocID]++
	}

	byLength := map[pipeline.LengthBucket]*counter{}
	byPosition := map[pipeline.PositionBucket]*counter{}

	for i, c := range chunks {
		covered := maxSim[i] >= tau

		lb := lengthBucket(c.TokenCount)
		if byLength[lb] == nil {
			byLength[lb] = &counter{}
		}
		byLength[lb].add(covered)

		pb := positionBucket(c.ChunkIndex, docLens[c.DocID])
		if byPosition[pb] == nil {
			byPosition[pb] = &counter{}
		}
		byPosition[pb].add(covered)
	}

	var summary []string
	lengthStats := []pipeline.BucketStats{
		statsFor(string(pipeline.LengthShort), byLength[pipeline.LengthShort]),
		statsFor(string(pipeline.LengthMedium), byLength[pipeline.LengthMedium]),
		statsFor(string(pipeline.LengthLong), byLength[pipeline.LengthLong]),
	}
	for i := range lengthStats {
		if insight := lowCoverageInsight(lengthStats[i], "chunks"); insight != "" {
			lengthStats[i].Insight = insight
			summary = append(summary, insight)
		}
	}

	positionStats := []pipeline.BucketStats{
		statsFor(string(pipeline.PositionBeginning), byPosition[pipeline.PositionBeginning]),
		statsFor(string(pipeline.PositionMiddle), byPosition[pipeline.PositionMiddle]),
		statsFor(string(pipeline.PositionEnd), byPosition[pipeline.PositionEnd]),
	}
	for i := range positionStats {
		if insight := lowCoverageInsight(positionStats[i], "chunks"); insight != "" {
			positionStats[i].Insight = insight
			summary = append(summary, insight)
		}
	}

	return pipeline.ChunkAnalysis{ByLength: lengthStats, ByPosition: positionStats, Summary: summary}
}

type counter struct {
	total, covered int
}

func (c *counter) add(covered bool) {
	c.total++
	if covered {
		c.covered++
	}
}

func statsFor(bucket string, c *counter) pipeline.BucketStats {
	if c == nil {
		return pipeline.BucketStats{Bucket: bucket}
	}
	var rate float64
	if c.total > 0 {
		rate = float64(c.covered) / float64(c.total)
	}
	return pipeline.BucketStats{Bucket: bucket, Total: c.total, Covered: c.covered, Rate: rate}
}

// lowCoverageInsight produces a short natural-language note when a
// bucket's coverage rate drops below 0.7.
const lowCoverageThreshold = 0.7

func lowCoverageInsight(stats pipeline.BucketStats, noun string) string {
	if stats.Total == 0 || stats.Rate >= lowCoverageThreshold {
		return ""
	}
	return fmt.Sprintf("%s %s under-covered (rate %.2f)", stats.Bucket, noun, stats.Rate)
}
