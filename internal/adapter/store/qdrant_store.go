package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sommelier-core/internal/domain/repository"
)

const (
	payloadKnowledgeID = "knowledge_id"
	payloadCreatedAt   = "created_at"
)

// filterableFields get keyword payload indexes so metadata filters stay cheap.
var filterableFields = []string{"category", "region", "varietal"}

var ErrInvalidVector = errors.New("vector must not be empty")

type QdrantStore struct {
	client         *qdrant.Client
	collectionName string
	log            *zap.Logger
}

func NewQdrantStore(client *qdrant.Client, collectionName string, log *zap.Logger) *QdrantStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &QdrantStore{
		client:         client,
		collectionName: collectionName,
		log:            log.With(zap.String("component", "qdrant_store"), zap.String("collection", collectionName)),
	}
}

func (s *QdrantStore) InitCollection(ctx context.Context, dim uint64) error {
	_, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || st.Code() != codes.NotFound {
			return fmt.Errorf("get collection %s: %w", s.collectionName, err)
		}
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		s.log.Info("created knowledge collection", zap.Uint64("dimension", dim))
	}

	for _, field := range filterableFields {
		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			// Existing indexes are reported as errors too.
			s.log.Warn("could not create payload index", zap.String("field", field), zap.Error(err))
		}
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, vector []float32, filter map[string]string, topK int) ([]repository.VectorMatch, error) {
	if len(vector) == 0 {
		return nil, ErrInvalidVector
	}
	if topK <= 0 {
		topK = 1
	}

	req := &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if conds := matchConditions(filter); len(conds) > 0 {
		req.Filter = &qdrant.Filter{Must: conds}
	}

	res, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.collectionName, err)
	}

	matches := make([]repository.VectorMatch, 0, len(res))
	for _, hit := range res {
		meta := payloadToMetadata(hit.Payload)
		id := meta[payloadKnowledgeID]
		if id == "" {
			id = hit.GetId().GetUuid()
		}
		delete(meta, payloadKnowledgeID)
		delete(meta, payloadCreatedAt)
		matches = append(matches, repository.VectorMatch{
			ID:       id,
			Score:    hit.Score,
			Metadata: meta,
		})
	}
	return matches, nil
}

func (s *QdrantStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}
	payload := map[string]any{
		payloadKnowledgeID: id,
		payloadCreatedAt:   time.Now().Unix(),
	}
	for k, v := range metadata {
		if v == "" {
			continue
		}
		payload[k] = v
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(PointID(id)),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(payload),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert %s into %s: %w", id, s.collectionName, err)
	}
	return nil
}

// PointID maps an arbitrary knowledge id onto the UUID qdrant requires.
// Ids that already are UUIDs pass through unchanged.
func PointID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("sommelier-knowledge:"+id)).String()
}

func matchConditions(filter map[string]string) []*qdrant.Condition {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		if filter[k] == "" {
			continue
		}
		conds = append(conds, qdrant.NewMatch(k, filter[k]))
	}
	return conds
}

func payloadToMetadata(payload map[string]*qdrant.Value) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = fmt.Sprintf("%d", kind.IntegerValue)
		}
	}
	return out
}
