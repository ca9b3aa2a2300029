package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sommelier-core/internal/domain/entity"
)

func fixedClock(month time.Month) func() time.Time {
	return func() time.Time { return time.Date(2025, month, 15, 19, 0, 0, 0, time.UTC) }
}

func TestAnalyze_SteakDinnerParty(t *testing.T) {
	a := NewContextAnalyzer().WithClock(fixedClock(time.October))
	req := entity.RecommendationRequest{
		Query: "What should I drink with grilled steak tonight?",
		Context: entity.RecommendationContext{
			Occasion:    "dinner party",
			FoodPairing: "grilled steak",
		},
		ExperienceLevel: entity.ExperienceIntermediate,
	}

	got := a.Analyze(req)

	assert.Equal(t, "dinner_party", got.Occasion.Type)
	assert.Equal(t, entity.FormalitySemiFormal, got.Occasion.Formality)
	assert.Equal(t, "steak", got.FoodPairing.MainDish)
	assert.Equal(t, "grilled", got.FoodPairing.CookingMethod)
	assert.Equal(t, "rich", got.FoodPairing.Richness)
	assert.Equal(t, entity.UrgencyHigh, got.Urgency.Level)
	assert.Equal(t, "fall", got.Occasion.Season)
	assert.Equal(t, entity.AvailabilityPurchaseAllowed, got.Constraints.Availability)
}

func TestAnalyze_IsDeterministic(t *testing.T) {
	a := NewContextAnalyzer().WithClock(fixedClock(time.January))
	req := entity.RecommendationRequest{
		Query:   "Something for spicy thai curry, budget friendly, for a birthday",
		Context: entity.RecommendationContext{Companions: 4, Season: "Summer"},
		TasteProfile: &entity.TasteProfile{
			RedWineDislikes: []string{"oaky"},
		},
		Inventory: []entity.Wine{{ID: "w1", Status: entity.WindowPeak}},
	}

	first := a.Analyze(req)
	second := a.Analyze(req)
	assert.Equal(t, first, second)

	assert.Equal(t, "summer", first.Occasion.Season)
	assert.Equal(t, 4, first.Occasion.CompanionCount)
	assert.Equal(t, []string{"birthday", "budget_conscious"}, first.Occasion.SpecialConsiderations)
	assert.Equal(t, "curry", first.FoodPairing.MainDish)
	assert.Equal(t, "thai", first.FoodPairing.Cuisine)
	assert.Equal(t, "medium", first.FoodPairing.SpiceLevel)
	assert.Contains(t, first.FoodPairing.Flavors, "spicy")
	assert.Equal(t, []string{"oaky"}, first.Preferences.DislikedCharacters)
	assert.Equal(t, entity.AvailabilityInventoryOnly, first.Constraints.Availability)
}

func TestAnalyze_Defaults(t *testing.T) {
	got := NewContextAnalyzer().WithClock(fixedClock(time.April)).Analyze(entity.RecommendationRequest{Query: "Recommend a wine"})

	assert.Equal(t, "general", got.Occasion.Type)
	assert.Equal(t, entity.FormalityCasual, got.Occasion.Formality)
	assert.Equal(t, "evening", got.Occasion.TimeOfDay)
	assert.Equal(t, "spring", got.Occasion.Season)
	assert.Empty(t, got.Occasion.SpecialConsiderations)
	assert.Equal(t, "", got.FoodPairing.MainDish)
	assert.Equal(t, "medium", got.FoodPairing.Richness)
	assert.Equal(t, "none", got.FoodPairing.SpiceLevel)
	assert.Equal(t, 1, got.Preferences.Adventurousness)
	assert.Equal(t, entity.AvailabilityPurchaseAllowed, got.Constraints.Availability)
	assert.Equal(t, entity.UrgencyMedium, got.Urgency.Level)
	assert.False(t, got.Urgency.DrinkingWindowPriority)
}

func TestSeasonFor(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.January, "winter"},
		{time.March, "spring"},
		{time.July, "summer"},
		{time.November, "fall"},
		{time.December, "winter"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, seasonFor(tt.month), tt.month.String())
	}
}

func TestAnalyze_Urgency(t *testing.T) {
	a := NewContextAnalyzer()
	tests := []struct {
		name  string
		query string
		want  entity.UrgencyLevel
	}{
		{"tonight", "a red for tonight", entity.UrgencyHigh},
		{"now", "open something now", entity.UrgencyHigh},
		{"know is not now", "I know little about wine", entity.UrgencyMedium},
		{"planning", "planning a tasting", entity.UrgencyLow},
		{"next week", "dinner next week", entity.UrgencyLow},
		{"neutral", "a nice white", entity.UrgencyMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(entity.RecommendationRequest{Query: tt.query})
			assert.Equal(t, tt.want, got.Urgency.Level)
		})
	}
}

func TestAnalyze_DrinkingWindowPriority(t *testing.T) {
	got := NewContextAnalyzer().Analyze(entity.RecommendationRequest{
		Query: "what to open",
		Inventory: []entity.Wine{
			{ID: "a", Status: entity.WindowReady},
			{ID: "b", Status: entity.WindowDeclining},
		},
	})
	assert.True(t, got.Urgency.DrinkingWindowPriority)
}

func TestAnalyze_Preferences(t *testing.T) {
	var consumption []entity.ConsumptionEntry
	for _, c := range []struct{ region, varietal string }{
		{"Burgundy", "Pinot Noir"},
		{"Napa", "Cabernet Sauvignon"},
		{"Rioja", "Tempranillo"},
		{"Mosel", "Riesling"},
		{"burgundy", "pinot noir"},
		{"Barossa", "Shiraz"},
	} {
		consumption = append(consumption, entity.ConsumptionEntry{Region: c.region, Varietal: c.varietal})
	}
	profile := &entity.TasteProfile{
		RedWineDislikes:       []string{"tannic"},
		WhiteWineDislikes:     []string{"oaky"},
		SparklingWineDislikes: []string{"sweet"},
		RecentConsumption:     consumption,
		LearningHistory:       make([]entity.LearningEntry, 10),
	}

	got := NewContextAnalyzer().Analyze(entity.RecommendationRequest{Query: "x", TasteProfile: profile})

	assert.Len(t, got.Preferences.RecentConsumption, 5)
	assert.Equal(t, "Napa", got.Preferences.RecentConsumption[0].Region)
	assert.Equal(t, []string{"tannic", "oaky", "sweet"}, got.Preferences.DislikedCharacters)
	// 5 regions + 5 varietals → diversity 5; 10 lessons → learning 2; round(3.5) = 4
	assert.Equal(t, 4, got.Preferences.Adventurousness)
	assert.Same(t, profile, got.Preferences.TasteProfile)
}

func TestAdventurousness_Clamped(t *testing.T) {
	profile := &entity.TasteProfile{LearningHistory: make([]entity.LearningEntry, 200)}
	// learning clamps at 10, diversity 0 → 5
	assert.Equal(t, 5, adventurousness(profile))
}
