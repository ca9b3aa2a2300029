package entity

type VocabularyLevel string

const (
	VocabularyAccessible   VocabularyLevel = "accessible"
	VocabularyIntermediate VocabularyLevel = "intermediate"
	VocabularyAdvanced     VocabularyLevel = "advanced"
)

const ToneProfessionalSommelier = "professional_sommelier"

type ResponseGuidelines struct {
	NoEmojis         bool            `json:"no_emojis"`
	Tone             string          `json:"tone"`
	IncludeEducation bool            `json:"include_education"`
	VocabularyLevel  VocabularyLevel `json:"vocabulary_level"`
	MaxLength        int             `json:"max_length"`
}

type PromptTemplate struct {
	SystemPrompt        string             `json:"system_prompt"`
	UserExperienceLevel ExperienceLevel    `json:"user_experience_level"`
	Guidelines          ResponseGuidelines `json:"guidelines"`
}

type ModelParams struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Completion is a successful, non-empty model answer.
type Completion struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
}
