package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"memvault/internal/models"
	"memvault/internal/store"
	"memvault/internal/validation"
)

func floatPtr(v float64) *float64 { return &v }

func testVector() []float64 {
	v := make([]float64, models.VectorDimensions)
	v[0] = 1
	return v
}

func createRequest(userID string) *models.CreateMemoryRequest {
	return &models.CreateMemoryRequest{
		UserID:                userID,
		MemoryType:            models.MemoryTypeConversation,
		ContentSummary:        "chatted about the garden",
		OriginalEntryID:       "entry-1",
		ImportanceScore:       floatPtr(0.7),
		EmotionalSignificance: floatPtr(0.4),
		TemporalRelevance:     floatPtr(0.6),
		FeatureVector:         testVector(),
		GateScores:            &models.GateScores{ForgetScore: 0.1, InputScore: 0.8, OutputScore: 0.6, Confidence: 0.9},
		Relationships:         []string{},
		ContextNeeded:         map[string]interface{}{},
		RetrievalTriggers:     []string{"garden"},
	}
}

func newTestService() *MemoryService {
	return NewMemoryService(store.NewInMemory())
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	memory, err := svc.Create(ctx, createRequest("user-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if memory.ID == "" {
		t.Error("Expected generated id")
	}
	if memory.AccessFrequency != 0 {
		t.Errorf("New record should start with access frequency 0, got %d", memory.AccessFrequency)
	}
	if memory.CreatedAt.IsZero() || memory.UpdatedAt.IsZero() || memory.LastAccessed.IsZero() {
		t.Error("All three timestamps should be stamped")
	}
	if !memory.CreatedAt.Equal(memory.UpdatedAt) {
		t.Error("CreatedAt and UpdatedAt should match on a fresh record")
	}

	stored, err := svc.Get(ctx, memory.ID)
	if err != nil {
		t.Fatalf("Get after create failed: %v", err)
	}
	if stored.ContentSummary != "chatted about the garden" {
		t.Errorf("Stored summary mismatch: %q", stored.ContentSummary)
	}

	// Two creates never collide on id
	second, err := svc.Create(ctx, createRequest("user-1"))
	if err != nil {
		t.Fatalf("Second create failed: %v", err)
	}
	if second.ID == memory.ID {
		t.Error("Generated ids must be unique")
	}
}

func TestServiceGetMissing(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	memory, err := svc.Create(ctx, createRequest("user-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("empty update only refreshes updated_at", func(t *testing.T) {
		time.Sleep(5 * time.Millisecond)
		updated, err := svc.Update(ctx, memory.ID, &models.UpdateMemoryRequest{})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if updated.ContentSummary != memory.ContentSummary || updated.ImportanceScore != memory.ImportanceScore {
			t.Error("Empty update must not change fields")
		}
		if !updated.UpdatedAt.After(memory.UpdatedAt) {
			t.Error("Empty update must still refresh updated_at")
		}
	})

	t.Run("supplied zero overwrites", func(t *testing.T) {
		updated, err := svc.Update(ctx, memory.ID, &models.UpdateMemoryRequest{
			ImportanceScore: floatPtr(0),
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if updated.ImportanceScore != 0 {
			t.Errorf("Supplied zero should overwrite, got %f", updated.ImportanceScore)
		}
	})

	t.Run("supplied empty list overwrites", func(t *testing.T) {
		empty := []string{}
		updated, err := svc.Update(ctx, memory.ID, &models.UpdateMemoryRequest{
			RetrievalTriggers: &empty,
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if len(updated.RetrievalTriggers) != 0 {
			t.Errorf("Supplied empty list should overwrite, got %v", updated.RetrievalTriggers)
		}
	})

	t.Run("missing record", func(t *testing.T) {
		if _, err := svc.Update(ctx, "missing", &models.UpdateMemoryRequest{}); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	memory, err := svc.Create(ctx, createRequest("user-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, err := svc.Delete(ctx, memory.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !result.Deleted || result.DeletedCount != 1 {
		t.Errorf("Unexpected delete result: %+v", result)
	}

	if _, err := svc.Delete(ctx, memory.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Deleting a deleted record should be ErrNotFound, got %v", err)
	}
}

func TestServiceRecordAccess(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	memory, err := svc.Create(ctx, createRequest("user-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, err := svc.RecordAccess(ctx, memory.ID)
	if err != nil {
		t.Fatalf("RecordAccess failed: %v", err)
	}
	second, err := svc.RecordAccess(ctx, memory.ID)
	if err != nil {
		t.Fatalf("RecordAccess failed: %v", err)
	}

	if first.AccessFrequency != 1 || second.AccessFrequency != 2 {
		t.Errorf("Expected frequencies 1 then 2, got %d then %d", first.AccessFrequency, second.AccessFrequency)
	}
	if second.LastAccessed.Before(first.LastAccessed) {
		t.Error("LastAccessed must not move backwards")
	}

	if _, err := svc.RecordAccess(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestServiceSimilaritySearch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	t.Run("empty store yields zero scores not errors", func(t *testing.T) {
		result, err := svc.SimilaritySearch(ctx, &models.SimilaritySearchRequest{FeatureVector: testVector()})
		if err != nil {
			t.Fatalf("SimilaritySearch failed: %v", err)
		}
		if result.ResultCount != 0 || len(result.Memories) != 0 {
			t.Errorf("Expected empty result, got %+v", result)
		}
		if result.MaxSimilarityScore != 0 || result.MinSimilarityScore != 0 {
			t.Errorf("Empty result must report 0 extremes, got max=%f min=%f",
				result.MaxSimilarityScore, result.MinSimilarityScore)
		}
		if result.QueryDimensions != models.VectorDimensions {
			t.Errorf("Expected query dimensions %d, got %d", models.VectorDimensions, result.QueryDimensions)
		}
	})

	near := createRequest("user-1")
	far := createRequest("user-1")
	farVec := make([]float64, models.VectorDimensions)
	farVec[0], farVec[1] = 1, 2
	far.FeatureVector = farVec

	for _, req := range []*models.CreateMemoryRequest{near, far} {
		if _, err := svc.Create(ctx, req); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	result, err := svc.SimilaritySearch(ctx, &models.SimilaritySearchRequest{FeatureVector: testVector()})
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if result.ResultCount != 2 {
		t.Fatalf("Expected 2 results, got %d", result.ResultCount)
	}
	if result.MaxSimilarityScore != result.Memories[0].SimilarityScore {
		t.Error("Max score should match the best-ranked row")
	}
	if result.MinSimilarityScore > result.MaxSimilarityScore {
		t.Error("Min score must not exceed max score")
	}

	t.Run("user filter applies", func(t *testing.T) {
		other := "user-2"
		result, err := svc.SimilaritySearch(ctx, &models.SimilaritySearchRequest{
			FeatureVector: testVector(),
			Filters:       &models.SearchFilters{UserID: &other},
		})
		if err != nil {
			t.Fatalf("SimilaritySearch failed: %v", err)
		}
		if result.ResultCount != 0 {
			t.Errorf("Expected no results for user-2, got %d", result.ResultCount)
		}
	})
}

func TestServiceQueryPagination(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	for i := 0; i < 5; i++ {
		if _, err := svc.Create(ctx, createRequest("user-1")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tests := []struct {
		name        string
		limit       int
		offset      int
		wantPage    int
		wantPages   int
		wantRows    int
		hasNext     bool
		hasPrevious bool
	}{
		{"first page", 2, 0, 1, 3, 2, true, false},
		{"middle page", 2, 2, 2, 3, 2, true, true},
		{"last page", 2, 4, 3, 3, 1, false, true},
		{"offset past end", 2, 10, 6, 3, 0, false, true},
		{"single page", 100, 0, 1, 1, 5, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Query(ctx, &models.MemoryQuery{
				Filter:    models.MemoryFilter{UserID: "user-1"},
				Limit:     tt.limit,
				Offset:    tt.offset,
				SortBy:    models.SortByCreatedAt,
				SortOrder: "desc",
			})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			p := result.Pagination
			if p.TotalCount != 5 {
				t.Errorf("Expected total 5, got %d", p.TotalCount)
			}
			if p.Page != tt.wantPage || p.TotalPages != tt.wantPages {
				t.Errorf("Expected page %d/%d, got %d/%d", tt.wantPage, tt.wantPages, p.Page, p.TotalPages)
			}
			if len(result.Memories) != tt.wantRows {
				t.Errorf("Expected %d rows, got %d", tt.wantRows, len(result.Memories))
			}
			if p.HasNext != tt.hasNext || p.HasPrevious != tt.hasPrevious {
				t.Errorf("Expected has_next=%v has_previous=%v, got %v %v",
					tt.hasNext, tt.hasPrevious, p.HasNext, p.HasPrevious)
			}
		})
	}

	t.Run("invalid limit rejected", func(t *testing.T) {
		_, err := svc.Query(ctx, &models.MemoryQuery{Limit: 0})
		var verr *validation.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Expected validation error for limit 0, got %v", err)
		}
	})

	t.Run("negative offset rejected", func(t *testing.T) {
		_, err := svc.Query(ctx, &models.MemoryQuery{Limit: 10, Offset: -1})
		var verr *validation.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Expected validation error for negative offset, got %v", err)
		}
	})
}

// failingStore wraps the in-memory store and fails inserts after a threshold.
type failingStore struct {
	store.MemoryStore
	inserts   int
	failAfter int
}

func (f *failingStore) Insert(ctx context.Context, m *models.MemoryEmbedding) error {
	if f.inserts >= f.failAfter {
		return fmt.Errorf("simulated insert failure")
	}
	f.inserts++
	return f.MemoryStore.Insert(ctx, m)
}

func TestServiceBatchCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("full batch succeeds", func(t *testing.T) {
		svc := newTestService()
		result, err := svc.BatchCreate(ctx, &models.BatchCreateRequest{
			Memories: []models.CreateMemoryRequest{*createRequest("user-1"), *createRequest("user-1"), *createRequest("user-2")},
		})
		if err != nil {
			t.Fatalf("BatchCreate failed: %v", err)
		}
		if result.InsertedCount != 3 || len(result.Memories) != 3 {
			t.Errorf("Expected 3 inserts, got %d", result.InsertedCount)
		}
	})

	t.Run("mid-batch failure reports aggregate count without rollback", func(t *testing.T) {
		failing := &failingStore{MemoryStore: store.NewInMemory(), failAfter: 2}
		svc := NewMemoryService(failing)

		result, err := svc.BatchCreate(ctx, &models.BatchCreateRequest{
			Memories: []models.CreateMemoryRequest{
				*createRequest("user-1"), *createRequest("user-1"),
				*createRequest("user-1"), *createRequest("user-1"),
			},
		})
		if err == nil {
			t.Fatal("Expected batch error, got nil")
		}
		if result.InsertedCount != 2 {
			t.Errorf("Expected 2 successful inserts before failure, got %d", result.InsertedCount)
		}

		// Earlier inserts stay in place
		count, countErr := failing.Count(ctx, nil)
		if countErr != nil || count != 2 {
			t.Errorf("Expected 2 persisted records, got %d (%v)", count, countErr)
		}
	})
}

func TestServiceStatistics(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	t.Run("empty collection", func(t *testing.T) {
		stats, err := svc.Statistics(ctx)
		if err != nil {
			t.Fatalf("Statistics failed: %v", err)
		}
		if stats.TotalMemories != 0 || stats.MemoriesLast7Days != 0 {
			t.Errorf("Expected zero counts, got %+v", stats)
		}
		if stats.AverageScores.ImportanceScore != 0 {
			t.Errorf("Empty collection averages must be 0, got %f", stats.AverageScores.ImportanceScore)
		}
		if stats.VectorDimensions != models.VectorDimensions {
			t.Errorf("Expected vector dimensions %d, got %d", models.VectorDimensions, stats.VectorDimensions)
		}
	})

	t.Run("counts and distribution", func(t *testing.T) {
		event := createRequest("user-1")
		event.MemoryType = models.MemoryTypeEvent
		for _, req := range []*models.CreateMemoryRequest{createRequest("user-1"), event} {
			if _, err := svc.Create(ctx, req); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}

		stats, err := svc.Statistics(ctx)
		if err != nil {
			t.Fatalf("Statistics failed: %v", err)
		}
		if stats.TotalMemories != 2 || stats.MemoriesLast7Days != 2 {
			t.Errorf("Expected 2/2 counts, got %d/%d", stats.TotalMemories, stats.MemoriesLast7Days)
		}
		if stats.MemoryTypeDistribution[models.MemoryTypeConversation] != 1 ||
			stats.MemoryTypeDistribution[models.MemoryTypeEvent] != 1 {
			t.Errorf("Unexpected distribution: %v", stats.MemoryTypeDistribution)
		}
	})

	t.Run("cache invalidated by writes", func(t *testing.T) {
		before, err := svc.Statistics(ctx)
		if err != nil {
			t.Fatalf("Statistics failed: %v", err)
		}

		if _, err := svc.Create(ctx, createRequest("user-3")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		after, err := svc.Statistics(ctx)
		if err != nil {
			t.Fatalf("Statistics failed: %v", err)
		}
		if after.TotalMemories != before.TotalMemories+1 {
			t.Errorf("Stats cache should be flushed on write: before=%d after=%d",
				before.TotalMemories, after.TotalMemories)
		}
	})
}
