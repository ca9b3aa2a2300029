package entity

import "time"

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
)

// Normalize maps unknown or empty levels to intermediate.
func (l ExperienceLevel) Normalize() ExperienceLevel {
	switch l {
	case ExperienceBeginner, ExperienceIntermediate, ExperienceAdvanced:
		return l
	default:
		return ExperienceIntermediate
	}
}

type RecommendationType string

const (
	RecommendationInventory RecommendationType = "inventory"
	RecommendationPurchase  RecommendationType = "purchase"
	RecommendationPairing   RecommendationType = "pairing"
)

// DrinkingWindowStatus is computed by the cellar service and only consumed here.
type DrinkingWindowStatus string

const (
	WindowTooYoung  DrinkingWindowStatus = "too_young"
	WindowReady     DrinkingWindowStatus = "ready"
	WindowPeak      DrinkingWindowStatus = "peak"
	WindowDeclining DrinkingWindowStatus = "declining"
	WindowOverHill  DrinkingWindowStatus = "over_hill"
)

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type RecommendationContext struct {
	Occasion    string      `json:"occasion,omitempty"`
	FoodPairing string      `json:"food_pairing,omitempty"`
	PriceRange  *PriceRange `json:"price_range,omitempty"`
	Companions  int         `json:"companions,omitempty"`
	Season      string      `json:"season,omitempty"`
}

type ConsumptionEntry struct {
	WineID     string    `json:"wine_id"`
	Region     string    `json:"region"`
	Varietal   string    `json:"varietal"`
	Rating     int       `json:"rating"`
	ConsumedAt time.Time `json:"consumed_at"`
}

type LearningEntry struct {
	Topic       string    `json:"topic"`
	CompletedAt time.Time `json:"completed_at"`
}

// TasteProfile is owned by the caller and read-only inside the pipeline.
type TasteProfile struct {
	RedWineDislikes       []string           `json:"red_wine_dislikes"`
	WhiteWineDislikes     []string           `json:"white_wine_dislikes"`
	SparklingWineDislikes []string           `json:"sparkling_wine_dislikes"`
	PreferredRegions      []string           `json:"preferred_regions"`
	PreferredVarietals    []string           `json:"preferred_varietals"`
	RecentConsumption     []ConsumptionEntry `json:"recent_consumption"`
	LearningHistory       []LearningEntry    `json:"learning_history"`
}

type Wine struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Producer  string               `json:"producer"`
	Vintage   int                  `json:"vintage,omitempty"`
	Region    string               `json:"region,omitempty"`
	Varietals []string             `json:"varietals,omitempty"`
	Type      string               `json:"type,omitempty"`
	Quantity  int                  `json:"quantity,omitempty"`
	Status    DrinkingWindowStatus `json:"status,omitempty"`
}

type RecommendationRequest struct {
	UserID          string                `json:"user_id"`
	Query           string                `json:"query"`
	Context         RecommendationContext `json:"context"`
	TasteProfile    *TasteProfile         `json:"taste_profile,omitempty"`
	Inventory       []Wine                `json:"inventory,omitempty"`
	ExperienceLevel ExperienceLevel       `json:"experience_level"`

	// Optional; derived from the analysed context when empty.
	RecommendationType RecommendationType `json:"recommendation_type,omitempty"`
}
