package usecase

import (
	"fmt"
	"strings"

	"sommelier-core/internal/domain/entity"
)

const basePolicyPrompt = `You are an experienced sommelier advising a private wine collector through their cellar application.

RESPONSE POLICY (NON-NEGOTIABLE):
1. Never use emojis, emoticons or decorative symbols.
2. Keep a warm, professional sommelier tone. No slang, no exclamation-heavy hype.
3. Recommend at most three wines. Name each wine with producer, vintage when known, and varietal.
4. Explain why each wine suits the request (pairing logic, structure, occasion).
5. Only recommend wines from the collector's cellar when the request is limited to it.
6. When unsure about a fact, say so rather than inventing details.`

var experiencePrompts = map[entity.ExperienceLevel]string{
	entity.ExperienceBeginner: `AUDIENCE: a beginner.
- Use plain language and briefly explain any wine term you use.
- Include one short educational note about why the pairing or style works.
- Favour approachable, widely available styles.`,
	entity.ExperienceIntermediate: `AUDIENCE: an intermediate enthusiast.
- Use common tasting vocabulary (tannin, acidity, body, finish) without over-explaining.
- Mention region and vintage character where it matters.`,
	entity.ExperienceAdvanced: `AUDIENCE: an advanced collector.
- Use precise technical vocabulary (terroir, vinification, ageing potential).
- Discuss producer style, vintage variation and cellaring windows.`,
}

var recommendationTypePrompts = map[entity.RecommendationType]string{
	entity.RecommendationInventory: `TASK: choose from the collector's own cellar.
- Refer to bottles exactly as they are listed in the inventory.
- Prefer bottles whose drinking window is closing when they suit the request.`,
	entity.RecommendationPurchase: `TASK: suggest wines to buy.
- Give an indicative price band for each suggestion.
- Offer one alternative at a different price point when possible.`,
	entity.RecommendationPairing: `TASK: pair wine with food.
- Match weight and intensity of the wine to the dish.
- Address the cooking method, sauce and spice level explicitly.`,
}

var occasionPrompts = map[string]string{
	"dinner_party": `CONTEXT: a dinner party. Favour crowd-pleasing wines that flow across courses and consider quantities for the group.`,
	"romantic":     `CONTEXT: a romantic evening. Favour elegant, expressive wines and consider a sparkling or dessert option.`,
	"celebration":  `CONTEXT: a celebration. Sparkling wine or a standout bottle is appropriate; mention serving temperature.`,
	"business":     `CONTEXT: a business occasion. Favour recognised, reliable producers and avoid polarising styles.`,
	"casual":       `CONTEXT: a casual gathering. Favour easy-drinking, good-value wines.`,
}

var guidelinesByLevel = map[entity.ExperienceLevel]entity.ResponseGuidelines{
	entity.ExperienceBeginner:     {VocabularyLevel: entity.VocabularyAccessible, MaxLength: 1200, IncludeEducation: true},
	entity.ExperienceIntermediate: {VocabularyLevel: entity.VocabularyIntermediate, MaxLength: 1500},
	entity.ExperienceAdvanced:     {VocabularyLevel: entity.VocabularyAdvanced, MaxLength: 1800},
}

const maxInventoryInPrompt = 20

type PromptTemplateBuilder struct{}

func NewPromptTemplateBuilder() *PromptTemplateBuilder {
	return &PromptTemplateBuilder{}
}

// Build assembles the system prompt. Unknown occasion types add nothing.
func (b *PromptTemplateBuilder) Build(level entity.ExperienceLevel, recType entity.RecommendationType, occasionType string) entity.PromptTemplate {
	level = level.Normalize()

	sections := []string{basePolicyPrompt, experiencePrompts[level]}
	if p, ok := recommendationTypePrompts[recType]; ok {
		sections = append(sections, p)
	}
	if p, ok := occasionPrompts[occasionType]; ok {
		sections = append(sections, p)
	}

	g := guidelinesByLevel[level]
	g.NoEmojis = true
	g.Tone = entity.ToneProfessionalSommelier

	return entity.PromptTemplate{
		SystemPrompt:        strings.Join(sections, "\n\n"),
		UserExperienceLevel: level,
		Guidelines:          g,
	}
}

// BuildUserPrompt renders the user turn: the question, what was inferred from
// it, the cellar and any retrieved knowledge.
func (b *PromptTemplateBuilder) BuildUserPrompt(req entity.RecommendationRequest, analysis entity.ContextAnalysis, knowledge []entity.KnowledgeItem) string {
	var sb strings.Builder

	sb.WriteString("REQUEST:\n")
	sb.WriteString(strings.TrimSpace(req.Query))
	sb.WriteString("\n\nCONTEXT:\n")

	occ := analysis.Occasion
	fmt.Fprintf(&sb, "- Occasion: %s (%s), %s, %s\n", occ.Type, occ.Formality, occ.TimeOfDay, occ.Season)
	if occ.CompanionCount > 0 {
		fmt.Fprintf(&sb, "- Guests: %d\n", occ.CompanionCount)
	}
	if len(occ.SpecialConsiderations) > 0 {
		fmt.Fprintf(&sb, "- Considerations: %s\n", strings.Join(occ.SpecialConsiderations, ", "))
	}

	fp := analysis.FoodPairing
	if fp.MainDish != "" || fp.Cuisine != "" {
		fmt.Fprintf(&sb, "- Food: %s", nonEmpty(fp.MainDish, "unspecified dish"))
		if fp.CookingMethod != "" {
			fmt.Fprintf(&sb, ", %s", fp.CookingMethod)
		}
		if fp.Cuisine != "" {
			fmt.Fprintf(&sb, ", %s cuisine", fp.Cuisine)
		}
		fmt.Fprintf(&sb, "; richness %s, spice %s\n", fp.Richness, fp.SpiceLevel)
	}
	if len(fp.Flavors) > 0 {
		fmt.Fprintf(&sb, "- Flavours: %s\n", strings.Join(fp.Flavors, ", "))
	}

	if pr := analysis.Constraints.PriceRange; pr != nil {
		fmt.Fprintf(&sb, "- Budget: %.0f to %.0f\n", pr.Min, pr.Max)
	}
	fmt.Fprintf(&sb, "- Availability: %s\n", analysis.Constraints.Availability)
	fmt.Fprintf(&sb, "- Urgency: %s\n", analysis.Urgency.Level)
	fmt.Fprintf(&sb, "- Adventurousness: %d/10\n", analysis.Preferences.Adventurousness)
	if d := analysis.Preferences.DislikedCharacters; len(d) > 0 {
		fmt.Fprintf(&sb, "- Avoid: %s\n", strings.Join(d, ", "))
	}
	if p := req.TasteProfile; p != nil {
		if len(p.PreferredVarietals) > 0 {
			fmt.Fprintf(&sb, "- Favourite varietals: %s\n", strings.Join(p.PreferredVarietals, ", "))
		}
		if len(p.PreferredRegions) > 0 {
			fmt.Fprintf(&sb, "- Favourite regions: %s\n", strings.Join(p.PreferredRegions, ", "))
		}
	}

	if len(req.Inventory) > 0 {
		sb.WriteString("\nCELLAR:\n")
		for i, w := range req.Inventory {
			if i == maxInventoryInPrompt {
				fmt.Fprintf(&sb, "- ... and %d more bottles\n", len(req.Inventory)-maxInventoryInPrompt)
				break
			}
			sb.WriteString("- ")
			sb.WriteString(describeWine(w))
			sb.WriteString("\n")
		}
		if analysis.Urgency.DrinkingWindowPriority {
			sb.WriteString("Some bottles are past their peak; prefer them if they fit.\n")
		}
	}

	if len(knowledge) > 0 {
		sb.WriteString("\nREFERENCE NOTES:\n")
		for _, k := range knowledge {
			fmt.Fprintf(&sb, "- %s: %s\n", nonEmpty(k.Title, k.Category), strings.TrimSpace(k.Content))
		}
	}
	return sb.String()
}

func describeWine(w entity.Wine) string {
	parts := []string{}
	if w.Producer != "" {
		parts = append(parts, w.Producer)
	}
	parts = append(parts, w.Name)
	if w.Vintage > 0 {
		parts = append(parts, fmt.Sprintf("%d", w.Vintage))
	}
	s := strings.Join(parts, " ")
	if len(w.Varietals) > 0 {
		s += " (" + strings.Join(w.Varietals, ", ") + ")"
	}
	if w.Region != "" {
		s += ", " + w.Region
	}
	if w.Status != "" {
		s += " [" + string(w.Status) + "]"
	}
	return s
}

func nonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
