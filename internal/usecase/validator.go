package usecase

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"sommelier-core/internal/domain/entity"
)

const (
	penaltyEmoji        = 50
	penaltyTone         = 20
	penaltyLength       = 10
	penaltyVocabulary   = 5
	penaltyIncomplete   = 10
	penaltyMisconceived = 25
)

// StyleClassifier answers the lexical questions the validator asks. The
// default is a fixed lexicon; a model-backed classifier can replace it.
type StyleClassifier interface {
	UnprofessionalPhrases(text string) []string
	ProfessionalPhrases(text string) []string
	ComplexTerms(text string) int
	TechnicalTerms(text string) int
	Misconceptions(text string) []Misconception
}

type Misconception struct {
	Phrase     string
	Correction string
}

type Lexicon struct {
	Unprofessional []string
	Professional   []string
	Complex        []string
	Technical      []string
	Misconceptions []Misconception
}

func DefaultLexicon() Lexicon {
	return Lexicon{
		Unprofessional: []string{
			"omg", "lol", "lmao", "totally", "awesome", "dude", "yummy", "gonna", "wanna",
			"super cool", "crazy good", "insane", "btw", "yolo", "literally the best", "epic",
		},
		Professional: []string{
			"recommend", "suggest", "pair", "complement", "palate", "finish", "structure",
			"balance", "aroma", "bouquet", "tannin", "acidity", "vintage", "body", "character",
			"elegant", "expression", "notes",
		},
		Complex: []string{
			"malolactic", "brettanomyces", "phenolic", "terroir", "sur lie", "batonnage",
			"carbonic maceration", "botrytis", "oxidative", "reductive", "pyrazine", "tertiary",
			"whole-cluster", "lees",
		},
		Technical: []string{
			"tannin", "acidity", "body", "finish", "vintage", "oak", "varietal", "appellation",
			"structure", "palate", "decant", "aroma",
		},
		Misconceptions: []Misconception{
			{"red wine with fish", "many light reds such as Pinot Noir pair well with fish"},
			{"all wines improve with age", "most wines are made to be drunk within a few years"},
			{"older wine is always better", "only a small share of wines benefit from long ageing"},
			{"screw caps mean poor quality", "screw caps are used on many premium wines"},
			{"sulfites cause headaches", "sulfite sensitivity is rare; dried fruit has more sulfites than wine"},
			{"rosé is made by mixing red and white", "most rosé is made by short skin contact"},
			{"white wine should be served ice cold", "fuller whites show best lightly chilled"},
			{"red wine should be served at room temperature", "reds show best slightly below modern room temperature"},
		},
	}
}

type lexiconClassifier struct {
	lex Lexicon
}

func NewLexiconClassifier(lex Lexicon) StyleClassifier {
	return &lexiconClassifier{lex: lex}
}

func (c *lexiconClassifier) UnprofessionalPhrases(text string) []string {
	return matchingWords(strings.ToLower(text), c.lex.Unprofessional)
}

func (c *lexiconClassifier) ProfessionalPhrases(text string) []string {
	return matchingPhrases(strings.ToLower(text), c.lex.Professional)
}

func (c *lexiconClassifier) ComplexTerms(text string) int {
	return len(matchingPhrases(strings.ToLower(text), c.lex.Complex))
}

func (c *lexiconClassifier) TechnicalTerms(text string) int {
	return len(matchingPhrases(strings.ToLower(text), c.lex.Technical))
}

func (c *lexiconClassifier) Misconceptions(text string) []Misconception {
	lower := strings.ToLower(text)
	var out []Misconception
	for _, m := range c.lex.Misconceptions {
		if strings.Contains(lower, m.Phrase) {
			out = append(out, m)
		}
	}
	return out
}

var (
	reasoningConnectives = []string{"because", "since", "due to", "reason", "pairs well", "complements"}
	wineSubjects         = []string{"wine", "bottle"}
	originIndicators     = []string{
		"region", "valley", "producer", "winery", "estate", "domaine", "château", "chateau",
		"vineyard", "appellation", "from ", "bodega", "cellars", "napa", "bordeaux", "burgundy",
		"tuscany", "rioja", "champagne", "barossa", "mosel", "piedmont", "sonoma",
	}
)

// ResponseValidator scores model output against a response policy.
type ResponseValidator struct {
	classifier StyleClassifier
}

func NewResponseValidator(classifier StyleClassifier) *ResponseValidator {
	if classifier == nil {
		classifier = NewLexiconClassifier(DefaultLexicon())
	}
	return &ResponseValidator{classifier: classifier}
}

func (v *ResponseValidator) Validate(text string, g entity.ResponseGuidelines) entity.ValidationResult {
	res := entity.ValidationResult{
		Errors:   []entity.ValidationError{},
		Warnings: []entity.ValidationWarning{},
	}
	score := 100

	if n := countEmojis(text); n > 0 {
		res.Errors = append(res.Errors, entity.ValidationError{
			Kind:     entity.KindEmojiDetected,
			Message:  fmt.Sprintf("Response contains %d emoji character(s)", n),
			Severity: entity.SeverityHigh,
		})
		score -= penaltyEmoji
	}

	var toneIssues []string
	if hits := v.classifier.UnprofessionalPhrases(text); len(hits) > 0 {
		toneIssues = append(toneIssues, "unprofessional phrasing: "+strings.Join(hits, ", "))
	}
	if len(v.classifier.ProfessionalPhrases(text)) == 0 {
		toneIssues = append(toneIssues, "lacks professional wine vocabulary")
		res.Warnings = append(res.Warnings, entity.ValidationWarning{
			Kind:       entity.KindMissingProfessionalVoc,
			Message:    "No professional wine vocabulary found",
			Suggestion: "Describe structure, palate or pairing logic",
		})
	}
	if len(toneIssues) > 0 {
		res.Errors = append(res.Errors, entity.ValidationError{
			Kind:     entity.KindInappropriateTone,
			Message:  "Inappropriate tone: " + strings.Join(toneIssues, "; "),
			Severity: entity.SeverityMedium,
		})
		score -= penaltyTone
	}

	if length := utf8.RuneCountInString(text); g.MaxLength > 0 && length > g.MaxLength {
		res.Errors = append(res.Errors, entity.ValidationError{
			Kind:     entity.KindExcessiveLength,
			Message:  fmt.Sprintf("Response length %d exceeds maximum of %d", length, g.MaxLength),
			Severity: entity.SeverityLow,
		})
		score -= penaltyLength
	}

	if w, ok := v.vocabularyWarning(text, g.VocabularyLevel); ok {
		res.Warnings = append(res.Warnings, w)
		score -= penaltyVocabulary
	}

	if missing := missingCompleteness(text); len(missing) > 0 {
		res.Warnings = append(res.Warnings, entity.ValidationWarning{
			Kind:       entity.KindIncompleteResponse,
			Message:    "Response is missing " + strings.Join(missing, ", "),
			Suggestion: "Explain the reasoning and name the wine and its origin",
		})
		score -= penaltyIncomplete
	}

	res.Score = max(score, 0)
	res.Passed = len(res.Errors) == 0
	return res
}

func (v *ResponseValidator) vocabularyWarning(text string, level entity.VocabularyLevel) (entity.ValidationWarning, bool) {
	complexN := v.classifier.ComplexTerms(text)
	technicalN := v.classifier.TechnicalTerms(text)

	var msg, suggestion string
	switch level {
	case entity.VocabularyAccessible:
		if complexN > 1 {
			msg = fmt.Sprintf("%d complex terms for a beginner audience", complexN)
			suggestion = "Replace or explain specialist terms"
		}
	case entity.VocabularyIntermediate:
		if complexN > 3 || technicalN == 0 {
			msg = fmt.Sprintf("vocabulary off target for intermediate audience (complex=%d, technical=%d)", complexN, technicalN)
			suggestion = "Use common tasting terms and fewer specialist ones"
		}
	case entity.VocabularyAdvanced:
		if technicalN < 2 && complexN == 0 {
			msg = fmt.Sprintf("too little technical depth for an advanced audience (technical=%d)", technicalN)
			suggestion = "Discuss structure, terroir or vinification"
		}
	}
	if msg == "" {
		return entity.ValidationWarning{}, false
	}
	return entity.ValidationWarning{
		Kind:       entity.KindVocabularyMismatch,
		Message:    "Vocabulary mismatch: " + msg,
		Suggestion: suggestion,
	}, true
}

func missingCompleteness(text string) []string {
	lower := strings.ToLower(text)
	var missing []string
	if !containsAny(lower, reasoningConnectives) {
		missing = append(missing, "reasoning")
	}
	if !containsAny(lower, wineSubjects) {
		missing = append(missing, "a wine reference")
	}
	if !containsAny(lower, originIndicators) {
		missing = append(missing, "region or producer")
	}
	return missing
}

// ValidateFactualAccuracy flags well-known wine misconceptions.
func (v *ResponseValidator) ValidateFactualAccuracy(text string) entity.ValidationResult {
	res := entity.ValidationResult{
		Errors:   []entity.ValidationError{},
		Warnings: []entity.ValidationWarning{},
	}
	score := 100
	for _, m := range v.classifier.Misconceptions(text) {
		res.Errors = append(res.Errors, entity.ValidationError{
			Kind:     entity.KindFactualInaccuracy,
			Message:  fmt.Sprintf("Possible misconception %q: %s", m.Phrase, m.Correction),
			Severity: entity.SeverityMedium,
		})
		score -= penaltyMisconceived
	}
	res.Score = max(score, 0)
	res.Passed = len(res.Errors) == 0
	return res
}

// ComprehensiveValidation unions policy and factual findings and averages their scores.
func (v *ResponseValidator) ComprehensiveValidation(text string, g entity.ResponseGuidelines) entity.ValidationResult {
	policy := v.Validate(text, g)
	factual := v.ValidateFactualAccuracy(text)

	res := entity.ValidationResult{
		Errors:   append(append([]entity.ValidationError{}, policy.Errors...), factual.Errors...),
		Warnings: append(append([]entity.ValidationWarning{}, policy.Warnings...), factual.Warnings...),
		Score:    int(math.Round(float64(policy.Score+factual.Score) / 2)),
	}
	res.Passed = len(res.Errors) == 0
	return res
}

type runeRange struct{ lo, hi rune }

var emojiRanges = []runeRange{
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F300, 0x1F5FF}, // symbols and pictographs
	{0x1F680, 0x1F6FF}, // transport and map
	{0x1F1E0, 0x1F1FF}, // flags
	{0x2600, 0x26FF},   // miscellaneous symbols
	{0x2700, 0x27BF},   // dingbats
	{0x1F900, 0x1F9FF}, // supplemental symbols
	{0x1FA70, 0x1FAFF}, // extended pictographs
}

func isEmoji(r rune) bool {
	for _, rr := range emojiRanges {
		if r >= rr.lo && r <= rr.hi {
			return true
		}
	}
	return false
}

func countEmojis(text string) int {
	n := 0
	for _, r := range text {
		if isEmoji(r) {
			n++
		}
	}
	return n
}

func matchingPhrases(lower string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			out = append(out, p)
		}
	}
	return out
}

func matchingWords(lower string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if containsAnyWord(lower, []string{p}) {
			out = append(out, p)
		}
	}
	return out
}
