package store

import (
	"context"
	"errors"
	"math"
	"time"

	"memvault/internal/models"
)

// ErrNotFound is the one error kind callers may branch on; everything else a
// store returns is a generic transient failure. No retries happen here.
var ErrNotFound = errors.New("memory not found")

// MemoryStore is the adapter contract over the external vector database.
// Per-record mutations (Update, Delete, RecordAccess) are atomic single-
// document operations; callers never read-modify-write across two calls.
type MemoryStore interface {
	Insert(ctx context.Context, m *models.MemoryEmbedding) error
	Get(ctx context.Context, id string) (*models.MemoryEmbedding, error)
	// Update applies a partial change-set and returns the post-update record.
	Update(ctx context.Context, id string, changes *models.MemoryChanges) (*models.MemoryEmbedding, error)
	Delete(ctx context.Context, id string) (int64, error)
	// RecordAccess atomically increments the access counter and stamps
	// lastAccessed/updatedAt, returning the post-update record.
	RecordAccess(ctx context.Context, id string, now time.Time) (*models.MemoryEmbedding, error)
	Query(ctx context.Context, q *models.MemoryQuery) ([]models.MemoryEmbedding, error)
	// VectorSearch ranks the filtered candidate set by cosine similarity,
	// descending. Ranking and tie-break policy belong to the adapter.
	VectorSearch(ctx context.Context, filter *models.MemoryFilter, vector []float64, limit int) ([]models.ScoredMemory, error)
	Count(ctx context.Context, filter *models.MemoryFilter) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	CountByType(ctx context.Context) (map[string]int64, error)
	AverageScores(ctx context.Context) (*models.ScoreAverages, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector is zero or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
