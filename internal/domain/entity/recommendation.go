package entity

type SuggestedWine struct {
	Name                string      `json:"name"`
	Producer            string      `json:"producer,omitempty"`
	Region              string      `json:"region,omitempty"`
	Varietals           []string    `json:"varietals"`
	Type                string      `json:"type"`
	EstimatedPriceRange *PriceRange `json:"estimated_price_range,omitempty"`
}

type Recommendation struct {
	Type               RecommendationType `json:"type"`
	WineID             string             `json:"wine_id,omitempty"`
	SuggestedWine      *SuggestedWine     `json:"suggested_wine,omitempty"`
	Reasoning          string             `json:"reasoning"`
	Confidence         float64            `json:"confidence"`
	EducationalContext string             `json:"educational_context,omitempty"`
}

type ResponseMetadata struct {
	RequestID        string   `json:"request_id"`
	ModelID          string   `json:"model_id"`
	TokensUsed       int      `json:"tokens_used"`
	ResponseTimeMs   int64    `json:"response_time_ms"`
	ValidationPassed bool     `json:"validation_passed"`
	ValidationErrors []string `json:"validation_errors"`
	ValidationScore  int      `json:"validation_score"`
	Confidence       float64  `json:"confidence"`
	FallbackUsed     bool     `json:"fallback_used"`
	KnowledgeItems   int      `json:"knowledge_items"`
}

type RecommendationResponse struct {
	Recommendations   []Recommendation `json:"recommendations"`
	Reasoning         string           `json:"reasoning"`
	Confidence        float64          `json:"confidence"`
	EducationalNotes  string           `json:"educational_notes,omitempty"`
	FollowUpQuestions []string         `json:"follow_up_questions,omitempty"`
	Metadata          ResponseMetadata `json:"response_metadata"`
}

// WineMention is a wine reference located in free text by a MentionExtractor.
type WineMention struct {
	Phrase   string `json:"phrase"`
	Vintage  int    `json:"vintage,omitempty"`
	Varietal string `json:"varietal"`
	Sentence string `json:"sentence,omitempty"`
}
