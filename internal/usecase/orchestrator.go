package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/domain/repository"
)

const (
	DefaultPipelineDeadline = 10 * time.Second
	fallbackConfidence      = 0.6
	fallbackErrorMessage    = "Service unavailable - using fallback"
	maxFollowUpQuestions    = 2
	metricsTimeout          = 2 * time.Second
)

type EngineConfig struct {
	Model           entity.ModelParams
	Deadline        time.Duration // bounds retrieval, completion and mention extraction together
	TopK            int
	CostPer1KTokens float64
}

// EngineDeps are the collaborators of the engine. Knowledge and Metrics are
// optional; Completion is required.
type EngineDeps struct {
	Completion repository.CompletionService
	Knowledge  repository.KnowledgeSource
	Metrics    repository.MetricsSink
	Analyzer   *ContextAnalyzer
	Builder    *PromptTemplateBuilder
	Validator  *ResponseValidator
	Enhancer   *ResponseEnhancer
	Parser     *RecommendationParser
	Logger     *zap.Logger
}

// RecommendationEngine runs one request through analysis, retrieval,
// completion, validation and parsing. It always produces a response.
type RecommendationEngine struct {
	completion repository.CompletionService
	knowledge  repository.KnowledgeSource
	metrics    repository.MetricsSink
	analyzer   *ContextAnalyzer
	builder    *PromptTemplateBuilder
	validator  *ResponseValidator
	enhancer   *ResponseEnhancer
	parser     *RecommendationParser
	log        *zap.Logger
	cfg        EngineConfig
	now        func() time.Time
}

func NewRecommendationEngine(deps EngineDeps, cfg EngineConfig) *RecommendationEngine {
	if deps.Knowledge == nil {
		deps.Knowledge = NoKnowledge{}
	}
	if deps.Analyzer == nil {
		deps.Analyzer = NewContextAnalyzer()
	}
	if deps.Builder == nil {
		deps.Builder = NewPromptTemplateBuilder()
	}
	if deps.Validator == nil {
		deps.Validator = NewResponseValidator(nil)
	}
	if deps.Enhancer == nil {
		deps.Enhancer = NewResponseEnhancer()
	}
	if deps.Parser == nil {
		deps.Parser = NewRecommendationParser(nil, DefaultRecommendationConfidence)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultPipelineDeadline
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &RecommendationEngine{
		completion: deps.Completion,
		knowledge:  deps.Knowledge,
		metrics:    deps.Metrics,
		analyzer:   deps.Analyzer,
		builder:    deps.Builder,
		validator:  deps.Validator,
		enhancer:   deps.Enhancer,
		parser:     deps.Parser,
		log:        deps.Logger.With(zap.String("component", "recommendation_engine")),
		cfg:        cfg,
		now:        time.Now,
	}
}

func (e *RecommendationEngine) GenerateRecommendations(ctx context.Context, req entity.RecommendationRequest) (resp *entity.RecommendationResponse) {
	start := e.now()
	requestID := uuid.NewString()
	log := e.log.With(zap.String("request_id", requestID), zap.String("user_id", req.UserID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("recommendation pipeline panicked", zap.Any("panic", r))
			resp = e.fallback(req, requestID, start)
		}
	}()

	// 1. Analyze context
	analysis := e.analyzer.Analyze(req)

	stageCtx, cancel := context.WithTimeout(ctx, e.cfg.Deadline)
	defer cancel()

	// 2. Retrieve knowledge; an empty slice is a valid outcome
	knowledge := e.knowledge.Retrieve(stageCtx, req.Query, req.TasteProfile, e.cfg.TopK)

	// 3. Build prompt
	level := req.ExperienceLevel.Normalize()
	recType := resolveRecommendationType(req, analysis)
	tmpl := e.builder.Build(level, recType, analysis.Occasion.Type)
	userPrompt := e.builder.BuildUserPrompt(req, analysis, knowledge)

	// 4. Complete
	completion, err := e.complete(stageCtx, tmpl.SystemPrompt, userPrompt)
	if err != nil {
		log.Warn("completion failed, using fallback",
			zap.String("kind", string(entity.CompletionKind(err))),
			zap.Error(err),
		)
		return e.fallback(req, requestID, start)
	}

	// 5. Validate; failure lowers quality but does not abort
	validation := e.validator.ComprehensiveValidation(completion.Text, tmpl.Guidelines)
	text := completion.Text

	// 6. Enhance only what passed
	if validation.Passed {
		text = e.enhancer.Enhance(text, tmpl.Guidelines)
	} else {
		log.Info("response failed validation",
			zap.Error(entity.ErrValidationFailed),
			zap.Int("score", validation.Score),
			zap.Strings("errors", validation.ErrorMessages()),
		)
	}

	// 7. Parse
	recs := e.parser.Parse(stageCtx, text, req, analysis)
	if len(recs) == 0 {
		log.Debug("no structured recommendations in response", zap.Error(entity.ErrNoRecommendations))
	}

	var notes string
	if tmpl.Guidelines.IncludeEducation {
		notes = educationalNotes(knowledge)
		attachEducation(recs, knowledge)
	}

	// 8. Aggregate confidence
	confidence := AggregateConfidence(recs, validation.Score)

	// 9. Respond
	resp = &entity.RecommendationResponse{
		Recommendations:   recs,
		Reasoning:         text,
		Confidence:        confidence,
		EducationalNotes:  notes,
		FollowUpQuestions: followUpQuestions(analysis, recType),
		Metadata: entity.ResponseMetadata{
			RequestID:        requestID,
			ModelID:          nonEmpty(completion.Model, e.cfg.Model.Model),
			TokensUsed:       completion.TokensUsed,
			ResponseTimeMs:   e.now().Sub(start).Milliseconds(),
			ValidationPassed: validation.Passed,
			ValidationErrors: validation.ErrorMessages(),
			ValidationScore:  validation.Score,
			Confidence:       confidence,
			KnowledgeItems:   len(knowledge),
		},
	}

	log.Info("recommendation generated",
		zap.Int("recommendations", len(recs)),
		zap.Float64("confidence", confidence),
		zap.Int("validation_score", validation.Score),
		zap.Int("tokens", completion.TokensUsed),
		zap.Int64("elapsed_ms", resp.Metadata.ResponseTimeMs),
	)
	e.emit(req, resp)
	return resp
}

func (e *RecommendationEngine) complete(ctx context.Context, systemPrompt, userPrompt string) (*entity.Completion, error) {
	if e.completion == nil {
		return nil, entity.NewCompletionUnknown("no completion service configured", nil)
	}
	c, err := e.completion.Complete(ctx, systemPrompt, userPrompt, e.cfg.Model)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && entity.CompletionKind(err) != entity.CompletionTimeout {
			return nil, entity.NewCompletionTimeout(err)
		}
		return nil, err
	}
	if c == nil || strings.TrimSpace(c.Text) == "" {
		return nil, entity.NewCompletionUnknown("", entity.ErrEmptyCompletion)
	}
	return c, nil
}

// AggregateConfidence blends recommendation confidence with the validation
// score, rounded to two decimals and clamped to [0,1].
func AggregateConfidence(recs []entity.Recommendation, validationScore int) float64 {
	mean := 0.0
	if len(recs) > 0 {
		for _, r := range recs {
			mean += r.Confidence
		}
		mean /= float64(len(recs))
	}
	c := 0.7*mean + 0.003*float64(validationScore)
	c = math.Round(c*100) / 100
	return clamp(c, 0, 1)
}

func resolveRecommendationType(req entity.RecommendationRequest, analysis entity.ContextAnalysis) entity.RecommendationType {
	switch {
	case req.RecommendationType != "":
		return req.RecommendationType
	case analysis.FoodPairing.MainDish != "":
		return entity.RecommendationPairing
	case analysis.Constraints.Availability == entity.AvailabilityInventoryOnly:
		return entity.RecommendationInventory
	default:
		return entity.RecommendationPurchase
	}
}

func followUpQuestions(analysis entity.ContextAnalysis, recType entity.RecommendationType) []string {
	var qs []string
	if analysis.FoodPairing.MainDish == "" && recType != entity.RecommendationPairing {
		qs = append(qs, "Will you be serving the wine with a particular dish?")
	}
	if analysis.Occasion.Type == "general" {
		qs = append(qs, "Is there a particular occasion you are choosing this wine for?")
	}
	if analysis.Constraints.PriceRange == nil && analysis.Constraints.Availability == entity.AvailabilityPurchaseAllowed {
		qs = append(qs, "What price range would you like to stay within?")
	}
	if analysis.Occasion.Type == "dinner_party" && analysis.Occasion.CompanionCount == 0 {
		qs = append(qs, "How many guests will you be serving?")
	}
	if len(qs) > maxFollowUpQuestions {
		qs = qs[:maxFollowUpQuestions]
	}
	return qs
}

func educationalNotes(knowledge []entity.KnowledgeItem) string {
	for _, k := range knowledge {
		if c := strings.TrimSpace(k.Content); c != "" {
			return c
		}
	}
	return ""
}

func attachEducation(recs []entity.Recommendation, knowledge []entity.KnowledgeItem) {
	for i := range recs {
		if recs[i].SuggestedWine == nil || len(recs[i].SuggestedWine.Varietals) == 0 {
			continue
		}
		varietal := strings.ToLower(recs[i].SuggestedWine.Varietals[0])
		for _, k := range knowledge {
			if strings.ToLower(k.Varietal) == varietal {
				recs[i].EducationalContext = k.Content
				break
			}
		}
	}
}

// fallback builds the degraded response. It only reads the request.
func (e *RecommendationEngine) fallback(req entity.RecommendationRequest, requestID string, start time.Time) *entity.RecommendationResponse {
	recs := make([]entity.Recommendation, 0, 3)
	if w, ok := pickCellarBottle(req.Inventory); ok {
		recs = append(recs, entity.Recommendation{
			Type:       entity.RecommendationInventory,
			WineID:     w.ID,
			Reasoning:  fmt.Sprintf("Browse your cellar: %s is a good bottle to open now.", describeWine(w)),
			Confidence: fallbackConfidence,
		})
	}
	recs = append(recs,
		entity.Recommendation{
			Type: entity.RecommendationPurchase,
			SuggestedWine: &entity.SuggestedWine{
				Name:      "Pinot Noir",
				Varietals: []string{"Pinot Noir"},
				Type:      "red",
			},
			Reasoning:  "View popular wines: a Pinot Noir is a versatile choice because its bright acidity and soft tannins suit a wide range of dishes.",
			Confidence: fallbackConfidence,
		},
		entity.Recommendation{
			Type:       entity.RecommendationPairing,
			Reasoning:  "A dry sparkling wine pairs well with most foods and occasions.",
			Confidence: fallbackConfidence,
		},
	)

	resp := &entity.RecommendationResponse{
		Recommendations:   recs,
		Reasoning:         "Personalised recommendations are temporarily unavailable, so here are some dependable options.",
		Confidence:        fallbackConfidence,
		FollowUpQuestions: []string{},
		Metadata: entity.ResponseMetadata{
			RequestID:        requestID,
			ModelID:          e.cfg.Model.Model,
			ResponseTimeMs:   e.now().Sub(start).Milliseconds(),
			ValidationPassed: false,
			ValidationErrors: []string{fallbackErrorMessage},
			Confidence:       fallbackConfidence,
			FallbackUsed:     true,
		},
	}
	e.emit(req, resp)
	return resp
}

var cellarPriority = map[entity.DrinkingWindowStatus]int{
	entity.WindowDeclining: 0,
	entity.WindowPeak:      1,
	entity.WindowReady:     2,
	entity.WindowOverHill:  3,
	"":                     4,
	entity.WindowTooYoung:  5,
}

func pickCellarBottle(inventory []entity.Wine) (entity.Wine, bool) {
	var (
		best  entity.Wine
		rank  = math.MaxInt
		found bool
	)
	for _, w := range inventory {
		r, ok := cellarPriority[w.Status]
		if !ok {
			r = 4
		}
		if r < rank {
			best, rank, found = w, r, true
		}
	}
	return best, found
}

// emit hands the usage record to the sink in the background.
func (e *RecommendationEngine) emit(req entity.RecommendationRequest, resp *entity.RecommendationResponse) {
	if e.metrics == nil {
		return
	}
	rec := entity.UsageRecord{
		RequestID:       resp.Metadata.RequestID,
		UserID:          req.UserID,
		Model:           resp.Metadata.ModelID,
		TokensUsed:      resp.Metadata.TokensUsed,
		ResponseTimeMs:  resp.Metadata.ResponseTimeMs,
		CostEstimate:    float64(resp.Metadata.TokensUsed) / 1000 * e.cfg.CostPer1KTokens,
		Confidence:      resp.Confidence,
		ValidationScore: resp.Metadata.ValidationScore,
		FallbackUsed:    resp.Metadata.FallbackUsed,
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("metrics sink panicked", zap.Any("panic", r))
			}
		}()
		// The request context may already be gone.
		bgCtx, cancel := context.WithTimeout(context.Background(), metricsTimeout)
		defer cancel()
		e.metrics.Record(bgCtx, rec)
	}()
}
