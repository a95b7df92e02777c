package llmprovider

import (
	"context"
	"fmt"
)

// GenerateWithFallback tries GenerateStructured first; if it fails (parser,
// provider, or schema mismatch), it falls back to GenerateText and extracts
// the largest JSON object matching the schema. If neither yields any pair,
// the caller should treat it as a task failure.
func GenerateWithFallback(ctx context.Context, p Provider, prompt Prompt, modelHint string) (QAResult, error) {
	res, err := p.GenerateStructured(ctx, prompt, modelHint)
	if err == nil && len(res.QAPairs) > 0 {
		return res, nil
	}

	text, textErr := p.GenerateText(ctx, prompt, modelHint)
	if textErr != nil {
		return QAResult{}, fmt.Errorf("llmprovider: structured failed (%v) and text fallback failed: %w", err, textErr)
	}
	extracted, extractErr := ExtractLargestJSONObject(text)
	if extractErr != nil {
		return QAResult{}, fmt.Errorf("llmprovider: structured failed (%v) and text fallback yielded no pairs: %w", err, extractErr)
	}
	return extracted, nil
}

// DistributeBatch assigns a flat list of generated pairs back to the k
// chunks of a batch request: for requested counts n_1..n_k, pairs are
// assigned in order to chunks 1..k, each consuming its requested n_i;
// surplus pairs are discarded and deficits are tolerated.
func DistributeBatch(pairs []QAPairRaw, requested []int) [][]QAPairRaw {
	out := make([][]QAPairRaw, len(requested))
	cursor := 0
	for i, n := range requested {
		end := cursor + n
		if end > len(pairs) {
			end = len(pairs)
		}
		if cursor < end {
			out[i] = append([]QAPairRaw(nil), pairs[cursor:end]...)
		}
		cursor = end
		if cursor >= len(pairs) {
			cursor = len(pairs)
		}
	}
	return out
}
