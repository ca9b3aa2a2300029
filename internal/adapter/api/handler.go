package api

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/domain/repository"
)

type Recommender interface {
	GenerateRecommendations(ctx context.Context, req entity.RecommendationRequest) *entity.RecommendationResponse
}

type KnowledgeIndexer interface {
	Index(ctx context.Context, item entity.KnowledgeItem) (string, error)
}

type RecommendationHandler struct {
	engine  Recommender
	indexer KnowledgeIndexer        // nil when no vector store is configured
	limiter repository.UsageLimiter // nil disables usage limits
	log     *zap.Logger
}

func NewRecommendationHandler(engine Recommender, indexer KnowledgeIndexer, limiter repository.UsageLimiter, log *zap.Logger) *RecommendationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecommendationHandler{
		engine:  engine,
		indexer: indexer,
		limiter: limiter,
		log:     log.With(zap.String("component", "api")),
	}
}

func (h *RecommendationHandler) HandleRecommend(c *fiber.Ctx) error {
	var req entity.RecommendationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query is required"})
	}

	if err := h.checkLimit(c.UserContext(), req.UserID); err != nil {
		if errors.Is(err, entity.ErrRateLimitExceeded) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	resp := h.engine.GenerateRecommendations(c.UserContext(), req)

	c.Set("X-Request-ID", resp.Metadata.RequestID)
	c.Set("X-Fallback-Used", "false")
	if resp.Metadata.FallbackUsed {
		c.Set("X-Fallback-Used", "true")
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// checkLimit fails open when the limiter itself is unavailable.
func (h *RecommendationHandler) checkLimit(ctx context.Context, userID string) error {
	if h.limiter == nil || userID == "" {
		return nil
	}
	allowed, err := h.limiter.CheckLimit(ctx, userID)
	if err != nil {
		h.log.Warn("usage limit check failed, allowing request", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if !allowed {
		return entity.ErrRateLimitExceeded
	}
	return nil
}

func (h *RecommendationHandler) HandleIndexKnowledge(c *fiber.Ctx) error {
	if h.indexer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "knowledge store is not configured"})
	}
	var item entity.KnowledgeItem
	if err := c.BodyParser(&item); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	id, err := h.indexer.Index(c.UserContext(), item)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error("knowledge indexing failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "knowledge indexing failed"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}
