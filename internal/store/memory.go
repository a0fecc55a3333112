package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"memvault/internal/models"
)

// InMemory implements MemoryStore on a mutex-guarded map. It backs the test
// suite and a storeless development mode; the Mongo adapter is the
// production path. Records are deep-copied on the way in and out so callers
// can never alias internal state.
type InMemory struct {
	mu       sync.RWMutex
	memories map[string]*models.MemoryEmbedding
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{memories: make(map[string]*models.MemoryEmbedding)}
}

func cloneMemory(m *models.MemoryEmbedding) *models.MemoryEmbedding {
	clone := *m
	clone.FeatureVector = append([]float64(nil), m.FeatureVector...)
	clone.Relationships = append([]string(nil), m.Relationships...)
	clone.RetrievalTriggers = append([]string(nil), m.RetrievalTriggers...)
	clone.ContextNeeded = make(map[string]interface{}, len(m.ContextNeeded))
	for k, v := range m.ContextNeeded {
		clone.ContextNeeded[k] = v
	}
	return &clone
}

func (s *InMemory) Insert(ctx context.Context, m *models.MemoryEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.memories[m.ID]; exists {
		return fmt.Errorf("duplicate memory id %s", m.ID)
	}
	s.memories[m.ID] = cloneMemory(m)
	return nil
}

func (s *InMemory) Get(ctx context.Context, id string) (*models.MemoryEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMemory(m), nil
}

func (s *InMemory) Update(ctx context.Context, id string, changes *models.MemoryChanges) (*models.MemoryEmbedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return nil, ErrNotFound
	}

	if changes.ContentSummary != nil {
		m.ContentSummary = *changes.ContentSummary
	}
	if changes.ImportanceScore != nil {
		m.ImportanceScore = *changes.ImportanceScore
	}
	if changes.EmotionalSignificance != nil {
		m.EmotionalSignificance = *changes.EmotionalSignificance
	}
	if changes.TemporalRelevance != nil {
		m.TemporalRelevance = *changes.TemporalRelevance
	}
	if changes.FeatureVector != nil {
		m.FeatureVector = append([]float64(nil), *changes.FeatureVector...)
	}
	if changes.GateScores != nil {
		m.GateScores = *changes.GateScores
	}
	if changes.Relationships != nil {
		m.Relationships = append([]string(nil), *changes.Relationships...)
	}
	if changes.ContextNeeded != nil {
		m.ContextNeeded = make(map[string]interface{}, len(*changes.ContextNeeded))
		for k, v := range *changes.ContextNeeded {
			m.ContextNeeded[k] = v
		}
	}
	if changes.RetrievalTriggers != nil {
		m.RetrievalTriggers = append([]string(nil), *changes.RetrievalTriggers...)
	}
	m.UpdatedAt = changes.UpdatedAt

	return cloneMemory(m), nil
}

func (s *InMemory) Delete(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[id]; !ok {
		return 0, nil
	}
	delete(s.memories, id)
	return 1, nil
}

func (s *InMemory) RecordAccess(ctx context.Context, id string, now time.Time) (*models.MemoryEmbedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.AccessFrequency++
	m.LastAccessed = now
	m.UpdatedAt = now

	return cloneMemory(m), nil
}

// matches evaluates the conjunctive filter predicate against one record.
func matches(f *models.MemoryFilter, m *models.MemoryEmbedding) bool {
	if f == nil {
		return true
	}
	if f.UserID != "" && m.UserID != f.UserID {
		return false
	}
	if f.MemoryType != "" && m.MemoryType != f.MemoryType {
		return false
	}
	if f.MinImportanceScore != nil && m.ImportanceScore < *f.MinImportanceScore {
		return false
	}
	if f.MinEmotionalSignificance != nil && m.EmotionalSignificance < *f.MinEmotionalSignificance {
		return false
	}
	if f.MinTemporalRelevance != nil && m.TemporalRelevance < *f.MinTemporalRelevance {
		return false
	}
	if len(f.RetrievalTriggers) > 0 {
		found := false
		for _, want := range f.RetrievalTriggers {
			for _, have := range m.RetrievalTriggers {
				if want == have {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedAfter != nil && m.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && m.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// sortKey extracts the comparable value for a sort field.
func sortKey(m *models.MemoryEmbedding, field string) float64 {
	switch field {
	case models.SortByCreatedAt:
		return float64(m.CreatedAt.UnixNano())
	case models.SortByLastAccessed:
		return float64(m.LastAccessed.UnixNano())
	case models.SortByImportanceScore:
		return m.ImportanceScore
	case models.SortByEmotionalSignificance:
		return m.EmotionalSignificance
	case models.SortByTemporalRelevance:
		return m.TemporalRelevance
	case models.SortByAccessFrequency:
		return float64(m.AccessFrequency)
	default:
		return float64(m.CreatedAt.UnixNano())
	}
}

func (s *InMemory) collect(f *models.MemoryFilter) []*models.MemoryEmbedding {
	matched := []*models.MemoryEmbedding{}
	for _, m := range s.memories {
		if matches(f, m) {
			matched = append(matched, m)
		}
	}
	return matched
}

func (s *InMemory) Query(ctx context.Context, q *models.MemoryQuery) ([]models.MemoryEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.collect(&q.Filter)
	asc := q.SortOrder == "asc"
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := sortKey(matched[i], q.SortBy), sortKey(matched[j], q.SortBy)
		if asc {
			return a < b
		}
		return a > b
	})

	if q.Offset >= len(matched) {
		return []models.MemoryEmbedding{}, nil
	}
	matched = matched[q.Offset:]
	if len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	page := make([]models.MemoryEmbedding, 0, len(matched))
	for _, m := range matched {
		page = append(page, *cloneMemory(m))
	}
	return page, nil
}

func (s *InMemory) VectorSearch(ctx context.Context, filter *models.MemoryFilter, vector []float64, limit int) ([]models.ScoredMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.collect(filter)
	scored := make([]models.ScoredMemory, 0, len(matched))
	for _, m := range matched {
		scored = append(scored, models.ScoredMemory{
			MemoryEmbedding: *cloneMemory(m),
			SimilarityScore: CosineSimilarity(vector, m.FeatureVector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].SimilarityScore > scored[j].SimilarityScore
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *InMemory) Count(ctx context.Context, filter *models.MemoryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.collect(filter))), nil
}

func (s *InMemory) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, m := range s.memories {
		if !m.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) CountByType(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	distribution := map[string]int64{}
	for _, m := range s.memories {
		distribution[m.MemoryType]++
	}
	return distribution, nil
}

func (s *InMemory) AverageScores(ctx context.Context) (*models.ScoreAverages, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	averages := &models.ScoreAverages{}
	if len(s.memories) == 0 {
		return averages, nil
	}

	for _, m := range s.memories {
		averages.ImportanceScore += m.ImportanceScore
		averages.EmotionalSignificance += m.EmotionalSignificance
		averages.TemporalRelevance += m.TemporalRelevance
		averages.AccessFrequency += float64(m.AccessFrequency)
	}
	n := float64(len(s.memories))
	averages.ImportanceScore /= n
	averages.EmotionalSignificance /= n
	averages.TemporalRelevance /= n
	averages.AccessFrequency /= n
	return averages, nil
}

func (s *InMemory) Ping(ctx context.Context) error {
	return nil
}

func (s *InMemory) Close(ctx context.Context) error {
	return nil
}
