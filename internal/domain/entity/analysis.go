package entity

type Formality string

const (
	FormalityCasual     Formality = "casual"
	FormalitySemiFormal Formality = "semi_formal"
	FormalityFormal     Formality = "formal"
)

type OccasionContext struct {
	Type                  string    `json:"type"`
	Formality             Formality `json:"formality"`
	TimeOfDay             string    `json:"time_of_day"`
	Season                string    `json:"season"`
	CompanionCount        int       `json:"companion_count"`
	SpecialConsiderations []string  `json:"special_considerations"`
}

type FoodPairingContext struct {
	MainDish      string   `json:"main_dish,omitempty"`
	Cuisine       string   `json:"cuisine,omitempty"`
	Flavors       []string `json:"flavors"`
	CookingMethod string   `json:"cooking_method,omitempty"`
	Richness      string   `json:"richness"`
	SpiceLevel    string   `json:"spice_level"`
}

type PreferenceContext struct {
	TasteProfile       *TasteProfile      `json:"-"`
	RecentConsumption  []ConsumptionEntry `json:"recent_consumption"`
	DislikedCharacters []string           `json:"disliked_characteristics"`
	Adventurousness    int                `json:"adventurousness"`
}

type Availability string

const (
	AvailabilityInventoryOnly   Availability = "inventory_only"
	AvailabilityPurchaseAllowed Availability = "purchase_allowed"
	AvailabilityRestaurantList  Availability = "restaurant_list"
)

type ConstraintContext struct {
	PriceRange   *PriceRange  `json:"price_range,omitempty"`
	Availability Availability `json:"availability"`
}

type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
)

type UrgencyContext struct {
	Level                  UrgencyLevel `json:"level"`
	DrinkingWindowPriority bool         `json:"drinking_window_priority"`
}

// ContextAnalysis is derived per request and never stored.
type ContextAnalysis struct {
	Occasion    OccasionContext    `json:"occasion"`
	FoodPairing FoodPairingContext `json:"food_pairing"`
	Preferences PreferenceContext  `json:"preferences"`
	Constraints ConstraintContext  `json:"constraints"`
	Urgency     UrgencyContext     `json:"urgency"`
}
