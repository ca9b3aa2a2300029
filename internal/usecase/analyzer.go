package usecase

import (
	"math"
	"strings"
	"time"

	"sommelier-core/internal/domain/entity"
)

type phraseGroup struct {
	key     string
	phrases []string
}

// Scanned in order; the first group with a hit wins.
var occasionGroups = []phraseGroup{
	{"dinner_party", []string{"dinner party", "hosting dinner", "dinner guests", "hosting friends"}},
	{"romantic", []string{"romantic", "date night", "valentine", "anniversary dinner"}},
	{"celebration", []string{"celebration", "celebrate", "promotion", "wedding", "graduation", "party"}},
	{"business", []string{"business", "client", "colleague", "corporate", "work dinner"}},
	{"casual", []string{"casual", "relaxing", "weeknight", "barbecue", "bbq", "picnic"}},
}

var occasionFormality = map[string]entity.Formality{
	"dinner_party": entity.FormalitySemiFormal,
	"romantic":     entity.FormalitySemiFormal,
	"celebration":  entity.FormalityFormal,
	"business":     entity.FormalityFormal,
	"casual":       entity.FormalityCasual,
}

var timeOfDayGroups = []phraseGroup{
	{"afternoon", []string{"lunch", "afternoon"}},
	{"morning", []string{"brunch", "morning"}},
	{"late_night", []string{"late night", "nightcap"}},
}

var specialConsiderationGroups = []phraseGroup{
	{"anniversary", []string{"anniversary"}},
	{"birthday", []string{"birthday"}},
	{"first_time_guest", []string{"first-time guest", "first time guest", "first time hosting", "meeting the parents"}},
	{"impressive_selection", []string{"impress"}},
	{"budget_conscious", []string{"budget", "affordable", "inexpensive", "cheap"}},
	{"special_occasion", []string{"special"}},
}

var dishVocabulary = []string{
	"steak", "ribeye", "lamb", "beef", "burger", "short ribs", "pork", "duck", "chicken", "turkey",
	"salmon", "tuna", "lobster", "shrimp", "scallops", "oysters", "crab", "fish", "sushi",
	"pasta", "pizza", "risotto", "mushroom", "cheese", "charcuterie", "salad", "curry",
	"tacos", "chocolate", "dessert",
}

var cuisineVocabulary = []string{
	"italian", "french", "spanish", "mexican", "thai", "indian", "chinese", "japanese",
	"korean", "vietnamese", "greek", "mediterranean", "middle eastern", "american", "cajun",
}

var flavorVocabulary = []string{
	"spicy", "sweet", "savory", "smoky", "earthy", "herbal", "citrus", "creamy", "buttery",
	"tangy", "salty", "umami", "peppery", "garlic", "fruity",
}

var methodVocabulary = []string{
	"grilled", "roasted", "braised", "fried", "pan-seared", "seared", "smoked", "baked",
	"poached", "steamed", "raw", "barbecued", "slow-cooked",
}

var richIndicators = []string{
	"steak", "ribeye", "beef", "lamb", "short ribs", "duck", "burger", "braised", "cream",
	"creamy", "butter", "buttery", "cheese", "rich", "fatty", "gravy", "bbq", "barbecue",
	"smoked", "chocolate",
}

var lightIndicators = []string{
	"salad", "fish", "seafood", "oysters", "shrimp", "scallops", "sushi", "vegetable",
	"steamed", "poached", "light", "citrus", "fresh", "raw", "lemon",
}

var spiceTiers = []phraseGroup{
	{"hot", []string{"very spicy", "extra spicy", "fiery", "habanero", "vindaloo", "ghost pepper"}},
	{"medium", []string{"spicy", "curry", "chili", "jalapeno", "jalapeño", "szechuan", "sichuan"}},
	{"mild", []string{"mild", "black pepper", "paprika", "ginger"}},
}

var (
	highUrgencyWords = []string{"tonight", "now", "immediately"}
	lowUrgencyWords  = []string{"planning", "future", "next week"}
)

// ContextAnalyzer derives structured signals from a request. Apart from the
// season default, which reads the clock, the result depends only on the request.
type ContextAnalyzer struct {
	now func() time.Time
}

func NewContextAnalyzer() *ContextAnalyzer {
	return &ContextAnalyzer{now: time.Now}
}

// WithClock pins the clock used for the season default.
func (a *ContextAnalyzer) WithClock(now func() time.Time) *ContextAnalyzer {
	return &ContextAnalyzer{now: now}
}

func (a *ContextAnalyzer) Analyze(req entity.RecommendationRequest) entity.ContextAnalysis {
	return entity.ContextAnalysis{
		Occasion:    a.analyzeOccasion(req),
		FoodPairing: analyzeFoodPairing(req),
		Preferences: analyzePreferences(req.TasteProfile),
		Constraints: analyzeConstraints(req),
		Urgency:     analyzeUrgency(req),
	}
}

func (a *ContextAnalyzer) analyzeOccasion(req entity.RecommendationRequest) entity.OccasionContext {
	text := joinLower(req.Query, req.Context.Occasion)

	occ := entity.OccasionContext{
		Type:                  "general",
		Formality:             entity.FormalityCasual,
		TimeOfDay:             "evening",
		CompanionCount:        req.Context.Companions,
		SpecialConsiderations: []string{},
	}
	if key, ok := firstGroup(text, occasionGroups); ok {
		occ.Type = key
		occ.Formality = occasionFormality[key]
	}
	if key, ok := firstGroup(text, timeOfDayGroups); ok {
		occ.TimeOfDay = key
	}

	occ.Season = strings.ToLower(strings.TrimSpace(req.Context.Season))
	if occ.Season == "" {
		occ.Season = seasonFor(a.now().Month())
	}

	for _, g := range specialConsiderationGroups {
		if containsAny(text, g.phrases) {
			occ.SpecialConsiderations = append(occ.SpecialConsiderations, g.key)
		}
	}
	return occ
}

func seasonFor(m time.Month) string {
	switch {
	case m >= time.March && m <= time.May:
		return "spring"
	case m >= time.June && m <= time.August:
		return "summer"
	case m >= time.September && m <= time.November:
		return "fall"
	default:
		return "winter"
	}
}

func analyzeFoodPairing(req entity.RecommendationRequest) entity.FoodPairingContext {
	text := joinLower(req.Query, req.Context.FoodPairing)

	fp := entity.FoodPairingContext{
		MainDish:      firstPhrase(text, dishVocabulary),
		Cuisine:       firstPhrase(text, cuisineVocabulary),
		Flavors:       []string{},
		CookingMethod: firstPhrase(text, methodVocabulary),
		Richness:      "medium",
		SpiceLevel:    "none",
	}
	for _, f := range flavorVocabulary {
		if strings.Contains(text, f) {
			fp.Flavors = append(fp.Flavors, f)
		}
	}

	rich, light := countPhrases(text, richIndicators), countPhrases(text, lightIndicators)
	switch {
	case rich > light:
		fp.Richness = "rich"
	case light > rich:
		fp.Richness = "light"
	}

	if key, ok := firstGroup(text, spiceTiers); ok {
		fp.SpiceLevel = key
	}
	return fp
}

func analyzePreferences(profile *entity.TasteProfile) entity.PreferenceContext {
	pc := entity.PreferenceContext{
		TasteProfile:       profile,
		RecentConsumption:  []entity.ConsumptionEntry{},
		DislikedCharacters: []string{},
		Adventurousness:    1,
	}
	if profile == nil {
		return pc
	}

	recent := profile.RecentConsumption
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	pc.RecentConsumption = append(pc.RecentConsumption, recent...)

	pc.DislikedCharacters = append(pc.DislikedCharacters, profile.RedWineDislikes...)
	pc.DislikedCharacters = append(pc.DislikedCharacters, profile.WhiteWineDislikes...)
	pc.DislikedCharacters = append(pc.DislikedCharacters, profile.SparklingWineDislikes...)

	pc.Adventurousness = adventurousness(profile)
	return pc
}

// adventurousness scores exploration breadth and learning depth on 1..10.
func adventurousness(profile *entity.TasteProfile) int {
	regions := map[string]struct{}{}
	varietals := map[string]struct{}{}
	for _, c := range profile.RecentConsumption {
		if r := strings.ToLower(strings.TrimSpace(c.Region)); r != "" {
			regions[r] = struct{}{}
		}
		if v := strings.ToLower(strings.TrimSpace(c.Varietal)); v != "" {
			varietals[v] = struct{}{}
		}
	}
	diversity := clamp(float64(len(regions)+len(varietals))/2, 0, 10)
	learning := clamp(float64(len(profile.LearningHistory))/5, 0, 10)

	score := int(math.Round((diversity + learning) / 2))
	if score < 1 {
		score = 1
	}
	return score
}

func analyzeConstraints(req entity.RecommendationRequest) entity.ConstraintContext {
	cc := entity.ConstraintContext{
		PriceRange:   req.Context.PriceRange,
		Availability: entity.AvailabilityPurchaseAllowed,
	}
	if len(req.Inventory) > 0 {
		cc.Availability = entity.AvailabilityInventoryOnly
	}
	return cc
}

func analyzeUrgency(req entity.RecommendationRequest) entity.UrgencyContext {
	text := strings.ToLower(req.Query)

	uc := entity.UrgencyContext{Level: entity.UrgencyMedium}
	switch {
	case containsAnyWord(text, highUrgencyWords):
		uc.Level = entity.UrgencyHigh
	case containsAnyWord(text, lowUrgencyWords):
		uc.Level = entity.UrgencyLow
	}
	for _, w := range req.Inventory {
		if w.Status == entity.WindowDeclining || w.Status == entity.WindowOverHill {
			uc.DrinkingWindowPriority = true
			break
		}
	}
	return uc
}

func joinLower(parts ...string) string {
	return strings.ToLower(strings.Join(parts, " "))
}

func firstGroup(text string, groups []phraseGroup) (string, bool) {
	for _, g := range groups {
		if containsAny(text, g.phrases) {
			return g.key, true
		}
	}
	return "", false
}

func firstPhrase(text string, vocabulary []string) string {
	for _, p := range vocabulary {
		if strings.Contains(text, p) {
			return p
		}
	}
	return ""
}

func countPhrases(text string, vocabulary []string) int {
	n := 0
	for _, p := range vocabulary {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// containsAnyWord matches whole words or phrases only, so "now" does not fire on "know".
func containsAnyWord(text string, phrases []string) bool {
	for _, p := range phrases {
		for start := 0; ; {
			i := strings.Index(text[start:], p)
			if i < 0 {
				break
			}
			i += start
			end := i + len(p)
			if isBoundary(text, i-1) && isBoundary(text, end) {
				return true
			}
			start = i + 1
		}
	}
	return false
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 'A' && c <= 'Z')
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
