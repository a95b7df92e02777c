package llmprovider

import (
	"fmt"

	jsonv2 "github.com/go-json-experiment/json"
)

// decodeStrict decodes raw structured output into a QAResult, rejecting any
// field outside the {qa_pairs:[{question,answer,question_type}]} schema.
// Structured-call responses are expected to already match the schema since
// they were requested against it; a stricter decode here catches providers
// that silently pad the object with extra fields.
func decodeStrict(raw []byte) (QAResult, error) {
	var res QAResult
	if err := jsonv2.Unmarshal(raw, &res, jsonv2.RejectUnknownMembers(true)); err != nil {
		return QAResult{}, fmt.Errorf("llmprovider: structured decode: %w", err)
	}
	if len(res.QAPairs) == 0 {
		return QAResult{}, fmt.Errorf("llmprovider: structured decode produced zero pairs")
	}
	return res, nil
}
