package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"memvault/internal/models"
	"memvault/internal/store"
	"memvault/internal/validation"
)

const (
	statsCacheTTL = 30 * time.Second
	statsCacheKey = "memory_stats"
	recentWindow  = 7 * 24 * time.Hour
)

// MemoryService translates validated requests into store operations. Filter
// building, pagination math, and statistics live here; vector ranking is
// delegated to the store adapter.
type MemoryService struct {
	store      store.MemoryStore
	statsCache *cache.Cache
}

// NewMemoryService creates a memory service on top of a store adapter.
func NewMemoryService(st store.MemoryStore) *MemoryService {
	return &MemoryService{
		store:      st,
		statsCache: cache.New(statsCacheTTL, time.Minute),
	}
}

// Create assigns a fresh id, stamps all three timestamps to now, applies
// defaults for omitted collections, and persists the record.
func (s *MemoryService) Create(ctx context.Context, req *models.CreateMemoryRequest) (*models.MemoryEmbedding, error) {
	now := time.Now().UTC()

	memory := &models.MemoryEmbedding{
		ID:                    uuid.NewString(),
		UserID:                req.UserID,
		MemoryType:            req.MemoryType,
		ContentSummary:        req.ContentSummary,
		OriginalEntryID:       req.OriginalEntryID,
		ImportanceScore:       *req.ImportanceScore,
		EmotionalSignificance: *req.EmotionalSignificance,
		TemporalRelevance:     *req.TemporalRelevance,
		AccessFrequency:       0,
		LastAccessed:          now,
		CreatedAt:             now,
		UpdatedAt:             now,
		FeatureVector:         req.FeatureVector,
		GateScores:            *req.GateScores,
		Relationships:         req.Relationships,
		ContextNeeded:         req.ContextNeeded,
		RetrievalTriggers:     req.RetrievalTriggers,
	}

	if err := s.store.Insert(ctx, memory); err != nil {
		recordStoreError("insert", err)
		return nil, err
	}

	if m := GetMetrics(); m != nil {
		m.MemoriesCreated.Inc()
	}
	s.statsCache.Flush()

	return memory, nil
}

// recordStoreError counts a genuine store failure for one operation. The
// service is the only layer that touches this counter; a missing record is a
// contract outcome and stays out of it.
func recordStoreError(op string, err error) {
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return
	}
	if m := GetMetrics(); m != nil {
		m.StoreErrors.WithLabelValues(op).Inc()
	}
}

// Get performs a point lookup. store.ErrNotFound propagates unchanged; it is
// the only error kind handlers translate to 404.
func (s *MemoryService) Get(ctx context.Context, id string) (*models.MemoryEmbedding, error) {
	memory, err := s.store.Get(ctx, id)
	recordStoreError("get", err)
	return memory, err
}

// Update applies only the supplied fields (presence, not truthiness: a
// supplied zero score or empty list still overwrites) and always refreshes
// updated_at, atomically against the single record.
func (s *MemoryService) Update(ctx context.Context, id string, req *models.UpdateMemoryRequest) (*models.MemoryEmbedding, error) {
	changes := &models.MemoryChanges{
		ContentSummary:        req.ContentSummary,
		ImportanceScore:       req.ImportanceScore,
		EmotionalSignificance: req.EmotionalSignificance,
		TemporalRelevance:     req.TemporalRelevance,
		FeatureVector:         req.FeatureVector,
		GateScores:            req.GateScores,
		Relationships:         req.Relationships,
		ContextNeeded:         req.ContextNeeded,
		RetrievalTriggers:     req.RetrievalTriggers,
		UpdatedAt:             time.Now().UTC(),
	}

	updated, err := s.store.Update(ctx, id, changes)
	if err != nil {
		recordStoreError("update", err)
		return nil, err
	}
	s.statsCache.Flush()
	return updated, nil
}

// Delete hard-deletes by id. A missing record is store.ErrNotFound, not a
// silent zero-count success.
func (s *MemoryService) Delete(ctx context.Context, id string) (*models.DeleteResult, error) {
	count, err := s.store.Delete(ctx, id)
	if err != nil {
		recordStoreError("delete", err)
		return nil, err
	}
	if count == 0 {
		return nil, store.ErrNotFound
	}

	if m := GetMetrics(); m != nil {
		m.MemoriesDeleted.Inc()
	}
	s.statsCache.Flush()

	log.Printf("🗑️ [MEMORY] Deleted memory %s", id)
	return &models.DeleteResult{Deleted: true, DeletedCount: count}, nil
}

// RecordAccess atomically increments access_frequency and stamps
// last_accessed/updated_at, returning the new counter and timestamp.
func (s *MemoryService) RecordAccess(ctx context.Context, id string) (*models.AccessResult, error) {
	updated, err := s.store.RecordAccess(ctx, id, time.Now().UTC())
	if err != nil {
		recordStoreError("record_access", err)
		return nil, err
	}
	s.statsCache.Flush()

	return &models.AccessResult{
		ID:              updated.ID,
		AccessFrequency: updated.AccessFrequency,
		LastAccessed:    updated.LastAccessed,
	}, nil
}

// SimilaritySearch builds the filter predicate, delegates ranking to the
// store, and annotates the result with max/min similarity (0 when empty).
// Rows come back in whatever order the store yielded them.
func (s *MemoryService) SimilaritySearch(ctx context.Context, req *models.SimilaritySearchRequest) (*models.SimilarityResult, error) {
	limit := validation.DefaultSimilarityLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	scored, err := s.store.VectorSearch(ctx, buildSearchFilter(req.Filters), req.FeatureVector, limit)
	if err != nil {
		recordStoreError("vector_search", err)
		return nil, err
	}

	result := &models.SimilarityResult{
		QueryDimensions: len(req.FeatureVector),
		ResultCount:     len(scored),
		Memories:        scored,
	}
	for i, row := range scored {
		if i == 0 || row.SimilarityScore > result.MaxSimilarityScore {
			result.MaxSimilarityScore = row.SimilarityScore
		}
		if i == 0 || row.SimilarityScore < result.MinSimilarityScore {
			result.MinSimilarityScore = row.SimilarityScore
		}
	}

	if m := GetMetrics(); m != nil {
		m.SimilaritySearches.Inc()
	}
	return result, nil
}

// Query runs the filtered, sorted, paginated scan plus a total count, and
// derives the pagination summary. The validator guarantees limit >= 1; the
// guard here keeps the page math safe even for hand-built queries.
func (s *MemoryService) Query(ctx context.Context, q *models.MemoryQuery) (*models.QueryResult, error) {
	if q.Limit < 1 || q.Limit > validation.MaxLimit {
		return nil, &validation.ValidationError{
			Violations: []string{fmt.Sprintf("limit must be between 1 and %d", validation.MaxLimit)},
		}
	}
	if q.Offset < 0 {
		return nil, &validation.ValidationError{
			Violations: []string{"offset must be a non-negative integer"},
		}
	}

	total, err := s.store.Count(ctx, &q.Filter)
	if err != nil {
		recordStoreError("count", err)
		return nil, err
	}

	memories, err := s.store.Query(ctx, q)
	if err != nil {
		recordStoreError("query", err)
		return nil, err
	}

	return &models.QueryResult{
		Memories: memories,
		Pagination: models.Pagination{
			TotalCount:  total,
			Page:        q.Offset/q.Limit + 1,
			TotalPages:  int((total + int64(q.Limit) - 1) / int64(q.Limit)),
			Limit:       q.Limit,
			Offset:      q.Offset,
			HasNext:     int64(q.Offset+q.Limit) < total,
			HasPrevious: q.Offset > 0,
		},
	}, nil
}

// BatchCreate inserts a pre-validated list sequentially. There is no
// rollback: when the store fails mid-batch, earlier inserts stay and the
// caller learns only the aggregate inserted count.
func (s *MemoryService) BatchCreate(ctx context.Context, req *models.BatchCreateRequest) (*models.BatchResult, error) {
	result := &models.BatchResult{Memories: []models.MemoryEmbedding{}}

	for i := range req.Memories {
		memory, err := s.Create(ctx, &req.Memories[i])
		if err != nil {
			log.Printf("❌ [MEMORY] Batch insert failed at record %d/%d: %v", i+1, len(req.Memories), err)
			return result, fmt.Errorf("batch insert failed after %d of %d records: %w",
				result.InsertedCount, len(req.Memories), err)
		}
		result.InsertedCount++
		result.Memories = append(result.Memories, *memory)
	}

	log.Printf("✅ [MEMORY] Batch inserted %d memories", result.InsertedCount)
	return result, nil
}

// Statistics computes collection-wide stats, cached for a short TTL and
// flushed on every successful write. Averages are 0, never NaN, on an empty
// collection.
func (s *MemoryService) Statistics(ctx context.Context) (*models.MemoryStats, error) {
	if cached, ok := s.statsCache.Get(statsCacheKey); ok {
		return cached.(*models.MemoryStats), nil
	}

	total, err := s.store.Count(ctx, nil)
	if err != nil {
		recordStoreError("stats", err)
		return nil, err
	}
	recent, err := s.store.CountCreatedSince(ctx, time.Now().UTC().Add(-recentWindow))
	if err != nil {
		recordStoreError("stats", err)
		return nil, err
	}
	distribution, err := s.store.CountByType(ctx)
	if err != nil {
		recordStoreError("stats", err)
		return nil, err
	}
	averages, err := s.store.AverageScores(ctx)
	if err != nil {
		recordStoreError("stats", err)
		return nil, err
	}

	stats := &models.MemoryStats{
		TotalMemories:          total,
		MemoriesLast7Days:      recent,
		MemoryTypeDistribution: distribution,
		AverageScores:          *averages,
		VectorDimensions:       models.VectorDimensions,
	}

	s.statsCache.Set(statsCacheKey, stats, cache.DefaultExpiration)
	return stats, nil
}

// Ping reports store health.
func (s *MemoryService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
