package entity

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

const (
	KindEmojiDetected          = "emoji_detected"
	KindInappropriateTone      = "inappropriate_tone"
	KindExcessiveLength        = "excessive_length"
	KindFactualInaccuracy      = "factual_inaccuracy"
	KindVocabularyMismatch     = "vocabulary_mismatch"
	KindIncompleteResponse     = "incomplete_response"
	KindMissingProfessionalVoc = "missing_professional_vocabulary"
)

type ValidationError struct {
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

type ValidationWarning struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// ValidationResult.Passed is true iff Errors is empty; warnings never fail a response.
type ValidationResult struct {
	Passed   bool                `json:"passed"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`
	Score    int                 `json:"score"`
}

func (r ValidationResult) ErrorMessages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Message)
	}
	return out
}
