package usecase

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/domain/repository"
)

const (
	DefaultRecommendationConfidence = 0.8
	maxRecommendations              = 3
)

var redVarietals = []string{
	"cabernet sauvignon", "cabernet franc", "pinot noir", "petite sirah", "nero d'avola",
	"merlot", "syrah", "shiraz", "malbec", "zinfandel", "tempranillo", "sangiovese", "nebbiolo",
	"grenache", "garnacha", "gamay", "barbera", "mourvedre", "mourvèdre", "carmenere",
	"carménère", "primitivo", "montepulciano", "aglianico",
}

var whiteVarietals = []string{
	"sauvignon blanc", "chenin blanc", "gruner veltliner", "grüner veltliner", "pinot grigio",
	"pinot gris", "chardonnay", "riesling", "viognier", "albarino", "albariño",
	"gewurztraminer", "gewürztraminer", "semillon", "sémillon", "moscato", "muscat",
	"vermentino", "marsanne", "roussanne",
}

var sparklingStyles = []string{"champagne", "prosecco", "cava", "cremant", "crémant", "franciacorta"}

var knownRegions = []string{
	"napa valley", "napa", "sonoma", "willamette valley", "oregon", "bordeaux", "burgundy",
	"champagne", "rhône", "rhone", "loire", "alsace", "tuscany", "piedmont", "rioja",
	"ribera del duero", "priorat", "mosel", "barossa", "mendoza", "marlborough", "douro",
}

var mentionStopwords = map[string]struct{}{
	"the": {}, "and": {}, "wine": {}, "wines": {}, "from": {}, "with": {}, "for": {},
	"try": {}, "consider": {}, "this": {}, "that": {}, "your": {}, "our": {}, "bottle": {},
}

var leadingFillers = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "try": {}, "consider": {}, "i": {}, "for": {}, "this": {},
	"your": {}, "our": {}, "my": {}, "both": {}, "either": {}, "open": {}, "pour": {},
	"choose": {}, "serve": {}, "pick": {}, "select": {}, "enjoy": {}, "grab": {}, "buy": {},
	"also": {}, "alternatively": {}, "finally": {}, "perhaps": {}, "then": {},
}

var producerAbbreviations = map[string]struct{}{
	"st": {}, "ste": {}, "ch": {}, "chât": {}, "mt": {}, "dr": {}, "jr": {}, "sr": {}, "bros": {},
}

var reMarkdown = regexp.MustCompile(`[*_#` + "`" + `]+`)

var reWineMention = buildMentionRegex()

func buildMentionRegex() *regexp.Regexp {
	all := append(append(append([]string{}, redVarietals...), whiteVarietals...), sparklingStyles...)
	// Longest first so "pinot noir" wins over shorter prefixes.
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && len(all[j]) > len(all[j-1]); j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	quoted := make([]string, len(all))
	for i, v := range all {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return regexp.MustCompile(
		`((?:\p{Lu}[\p{L}'’&.\-]*[ \t]+){1,4})` +
			`(?:((?:19|20)\d{2})[ \t]+)?` +
			`(?i:(` + strings.Join(quoted, "|") + `))\b`,
	)
}

// RegexMentionExtractor finds "Producer [Vintage] Varietal" phrases.
type RegexMentionExtractor struct{}

func NewRegexMentionExtractor() *RegexMentionExtractor {
	return &RegexMentionExtractor{}
}

func (x *RegexMentionExtractor) ExtractMentions(_ context.Context, text string) []entity.WineMention {
	clean := reMarkdown.ReplaceAllString(text, "")
	var out []entity.WineMention
	for _, m := range reWineMention.FindAllStringSubmatchIndex(clean, -1) {
		start := producerStart(clean, m[2], m[3])
		phrase := trimFillers(clean[start:m[3]])
		if phrase == "" {
			continue
		}
		mention := entity.WineMention{
			Phrase:   phrase,
			Varietal: titleCase(strings.ToLower(clean[m[6]:m[7]])),
			Sentence: sentenceAround(clean, start, m[1]),
		}
		if m[4] >= 0 {
			mention.Vintage, _ = strconv.Atoi(clean[m[4]:m[5]])
		}
		out = append(out, mention)
	}
	return out
}

// producerStart skips producer words up to and including the last one that closes a
// sentence, so "Marlborough. Pinot Noir" does not read as a producer.
func producerStart(text string, from, to int) int {
	start := from
	for i := from; i < to; {
		for i < to && (text[i] == ' ' || text[i] == '\t') {
			i++
		}
		j := i
		for j < to && text[j] != ' ' && text[j] != '\t' {
			j++
		}
		if j > i && endsSentence(text[i:j]) {
			start = j
		}
		i = j
	}
	return start
}

func endsSentence(word string) bool {
	stem, ok := strings.CutSuffix(word, ".")
	if !ok {
		return false
	}
	// Initials such as "J." or "J.J." stay part of the name.
	if strings.Contains(stem, ".") || utf8.RuneCountInString(stem) == 1 {
		return false
	}
	_, abbr := producerAbbreviations[strings.ToLower(stem)]
	return !abbr
}

func trimFillers(phrase string) string {
	words := strings.Fields(phrase)
	for len(words) > 0 {
		if _, ok := leadingFillers[strings.ToLower(words[0])]; !ok {
			break
		}
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func sentenceAround(text string, start, end int) string {
	from := strings.LastIndexAny(text[:start], ".!?\n")
	from++
	to := strings.IndexAny(text[end:], ".!?\n")
	if to < 0 {
		to = len(text)
	} else {
		to += end + 1
	}
	return strings.TrimSpace(text[from:to])
}

// RecommendationParser turns enhanced free text into at most three
// recommendations, resolving mentions against the request's cellar.
type RecommendationParser struct {
	extractor         repository.MentionExtractor
	defaultConfidence float64
}

func NewRecommendationParser(extractor repository.MentionExtractor, defaultConfidence float64) *RecommendationParser {
	if extractor == nil {
		extractor = NewRegexMentionExtractor()
	}
	if defaultConfidence <= 0 || defaultConfidence > 1 {
		defaultConfidence = DefaultRecommendationConfidence
	}
	return &RecommendationParser{extractor: extractor, defaultConfidence: defaultConfidence}
}

func (p *RecommendationParser) Parse(ctx context.Context, text string, req entity.RecommendationRequest, analysis entity.ContextAnalysis) []entity.Recommendation {
	recs := []entity.Recommendation{}
	seen := map[string]struct{}{}

	for _, m := range p.extractor.ExtractMentions(ctx, text) {
		if len(recs) == maxRecommendations {
			break
		}
		rec := entity.Recommendation{
			Reasoning:  nonEmpty(m.Sentence, m.Phrase+" "+m.Varietal),
			Confidence: p.defaultConfidence,
		}

		var key string
		if w, ok := matchInventory(m, req.Inventory); ok {
			rec.Type = entity.RecommendationInventory
			rec.WineID = w.ID
			key = "id:" + w.ID
		} else {
			rec.Type = entity.RecommendationPurchase
			rec.SuggestedWine = suggestWine(m, analysis)
			key = "name:" + strings.ToLower(rec.SuggestedWine.Name)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		recs = append(recs, rec)
	}
	return recs
}

func matchInventory(m entity.WineMention, inventory []entity.Wine) (entity.Wine, bool) {
	mentionTokens := tokenSet(m.Phrase)
	varietal := strings.ToLower(m.Varietal)

	var (
		best      entity.Wine
		bestScore int
	)
	for _, w := range inventory {
		score := 0
		for tok := range tokenSet(w.Name + " " + w.Producer) {
			if isVarietalWord(tok) {
				continue
			}
			if _, ok := mentionTokens[tok]; ok {
				score += 2
			}
		}
		if score == 0 {
			continue
		}
		for _, v := range w.Varietals {
			if strings.ToLower(v) == varietal {
				score++
			}
		}
		if m.Vintage > 0 && w.Vintage == m.Vintage {
			score++
		}
		if score > bestScore {
			best, bestScore = w, score
		}
	}
	return best, bestScore > 0
}

func suggestWine(m entity.WineMention, analysis entity.ContextAnalysis) *entity.SuggestedWine {
	name := m.Phrase + " " + m.Varietal
	if m.Vintage > 0 {
		name = m.Phrase + " " + strconv.Itoa(m.Vintage) + " " + m.Varietal
	}
	return &entity.SuggestedWine{
		Name:                name,
		Producer:            m.Phrase,
		Region:              titleCase(firstPhrase(strings.ToLower(m.Sentence), knownRegions)),
		Varietals:           []string{m.Varietal},
		Type:                InferWineType(m.Varietal),
		EstimatedPriceRange: analysis.Constraints.PriceRange,
	}
}

// InferWineType maps a varietal to red, white or sparkling; unknown is red.
func InferWineType(varietal string) string {
	v := strings.ToLower(strings.TrimSpace(varietal))
	switch {
	case inList(v, whiteVarietals):
		return "white"
	case inList(v, sparklingStyles):
		return "sparkling"
	default:
		return "red"
	}
}

func inList(v string, list []string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

var varietalWords = func() map[string]struct{} {
	out := map[string]struct{}{}
	for _, list := range [][]string{redVarietals, whiteVarietals, sparklingStyles} {
		for _, v := range list {
			for _, w := range strings.Fields(v) {
				out[w] = struct{}{}
			}
		}
	}
	return out
}()

func isVarietalWord(tok string) bool {
	_, ok := varietalWords[tok]
	return ok
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(tok)) < 3 {
			continue
		}
		if _, stop := mentionStopwords[tok]; stop {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
