package llmprovider

import (
	"encoding/json"
	"fmt"
)

// ExtractLargestJSONObject scans free-form text for the largest balanced
// {...} span that decodes into a QAResult. Used as the fallback when a
// provider cannot honor a structured-output request.
func ExtractLargestJSONObject(text string) (QAResult, error) {
	var best QAResult
	bestLen := -1
	found := false

	depth := 0
	start := -1
	for i, r := range text {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidate := text[start : i+1]
				var res QAResult
				if err := json.Unmarshal([]byte(candidate), &res); err == nil && len(res.QAPairs) > 0 {
					if len(candidate) > bestLen {
						best = res
						bestLen = len(candidate)
						found = true
					}
				}
				start = -1
			}
		}
	}
	if !found {
		return QAResult{}, fmt.Errorf("llmprovider: no JSON object matching the qa_pairs schema found in text")
	}
	return best, nil
}
