package entity

type KnowledgeItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Category string  `json:"category,omitempty"`
	Region   string  `json:"region,omitempty"`
	Varietal string  `json:"varietal,omitempty"`
	Score    float32 `json:"score"`
}

// UsageRecord is the per-request line handed to metrics sinks.
type UsageRecord struct {
	RequestID       string  `json:"request_id"`
	UserID          string  `json:"user_id"`
	Model           string  `json:"model"`
	TokensUsed      int     `json:"tokens_used"`
	ResponseTimeMs  int64   `json:"response_time_ms"`
	CostEstimate    float64 `json:"cost_estimate"`
	Confidence      float64 `json:"confidence"`
	ValidationScore int     `json:"validation_score"`
	FallbackUsed    bool    `json:"fallback_used"`
}
