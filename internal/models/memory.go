package models

import (
	"time"
)

// VectorDimensions is the fixed width of every feature vector. A record with
// any other vector length never reaches storage.
const VectorDimensions = 90

// Memory type constants
const (
	MemoryTypeConversation = "conversation"
	MemoryTypeEvent        = "event"
	MemoryTypeEmotion      = "emotion"
	MemoryTypeInsight      = "insight"
)

// ValidMemoryTypes is the closed set of memory_type values.
var ValidMemoryTypes = map[string]bool{
	MemoryTypeConversation: true,
	MemoryTypeEvent:        true,
	MemoryTypeEmotion:      true,
	MemoryTypeInsight:      true,
}

// Sortable field constants for queries
const (
	SortByCreatedAt             = "created_at"
	SortByLastAccessed          = "last_accessed"
	SortByImportanceScore       = "importance_score"
	SortByEmotionalSignificance = "emotional_significance"
	SortByTemporalRelevance     = "temporal_relevance"
	SortByAccessFrequency       = "access_frequency"
)

// ValidSortFields is the closed set of sort_by values.
var ValidSortFields = map[string]bool{
	SortByCreatedAt:             true,
	SortByLastAccessed:          true,
	SortByImportanceScore:       true,
	SortByEmotionalSignificance: true,
	SortByTemporalRelevance:     true,
	SortByAccessFrequency:       true,
}

// GateScores is the bundled scoring quadruple attached to each record.
// All four fields travel together; updates replace the whole block.
type GateScores struct {
	ForgetScore float64 `bson:"forgetScore" json:"forget_score"`
	InputScore  float64 `bson:"inputScore" json:"input_score"`
	OutputScore float64 `bson:"outputScore" json:"output_score"`
	Confidence  float64 `bson:"confidence" json:"confidence"`
}

// MemoryEmbedding is the core persisted entity: a 90-dim feature vector plus
// scoring metadata, scoped to an owning user.
type MemoryEmbedding struct {
	ID                    string                 `bson:"_id" json:"id"`
	UserID                string                 `bson:"userId" json:"user_id"`
	MemoryType            string                 `bson:"memoryType" json:"memory_type"`
	ContentSummary        string                 `bson:"contentSummary" json:"content_summary"`
	OriginalEntryID       string                 `bson:"originalEntryId" json:"original_entry_id"`
	ImportanceScore       float64                `bson:"importanceScore" json:"importance_score"`
	EmotionalSignificance float64                `bson:"emotionalSignificance" json:"emotional_significance"`
	TemporalRelevance     float64                `bson:"temporalRelevance" json:"temporal_relevance"`
	AccessFrequency       int64                  `bson:"accessFrequency" json:"access_frequency"`
	LastAccessed          time.Time              `bson:"lastAccessed" json:"last_accessed"`
	CreatedAt             time.Time              `bson:"createdAt" json:"created_at"`
	UpdatedAt             time.Time              `bson:"updatedAt" json:"updated_at"`
	FeatureVector         []float64              `bson:"featureVector" json:"feature_vector"`
	GateScores            GateScores             `bson:"gateScores" json:"gate_scores"`
	Relationships         []string               `bson:"relationships" json:"relationships"`
	ContextNeeded         map[string]interface{} `bson:"contextNeeded" json:"context_needed"`
	RetrievalTriggers     []string               `bson:"retrievalTriggers" json:"retrieval_triggers"`
}

// ScoredMemory is a memory annotated with its similarity to a query vector.
type ScoredMemory struct {
	MemoryEmbedding
	SimilarityScore float64 `json:"similarity_score"`
}

// CreateMemoryRequest is the create payload. Score fields are pointers so a
// missing field is distinguishable from a legitimate 0. Unknown JSON fields
// are dropped by typed decoding and never forwarded to storage.
type CreateMemoryRequest struct {
	UserID                string                 `json:"user_id"`
	MemoryType            string                 `json:"memory_type"`
	ContentSummary        string                 `json:"content_summary"`
	OriginalEntryID       string                 `json:"original_entry_id"`
	ImportanceScore       *float64               `json:"importance_score"`
	EmotionalSignificance *float64               `json:"emotional_significance"`
	TemporalRelevance     *float64               `json:"temporal_relevance"`
	FeatureVector         []float64              `json:"feature_vector"`
	GateScores            *GateScores            `json:"gate_scores"`
	Relationships         []string               `json:"relationships"`
	ContextNeeded         map[string]interface{} `json:"context_needed"`
	RetrievalTriggers     []string               `json:"retrieval_triggers"`
}

// UpdateMemoryRequest is the partial-update payload. Every field is optional;
// presence (not truthiness) decides whether it applies, so a supplied empty
// list or zero score still overwrites.
type UpdateMemoryRequest struct {
	ContentSummary        *string                 `json:"content_summary"`
	ImportanceScore       *float64                `json:"importance_score"`
	EmotionalSignificance *float64                `json:"emotional_significance"`
	TemporalRelevance     *float64                `json:"temporal_relevance"`
	FeatureVector         *[]float64              `json:"feature_vector"`
	GateScores            *GateScores             `json:"gate_scores"`
	Relationships         *[]string               `json:"relationships"`
	ContextNeeded         *map[string]interface{} `json:"context_needed"`
	RetrievalTriggers     *[]string               `json:"retrieval_triggers"`
}

// DateRange bounds createdAt inclusively on both ends. Start and End are ISO
// timestamps (RFC3339, or a bare date taken as midnight UTC).
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SearchFilters narrows similarity-search candidates. Same optional fields
// as the generic query, plus a retrieval-trigger membership test.
type SearchFilters struct {
	UserID                   *string    `json:"user_id"`
	MemoryType               *string    `json:"memory_type"`
	MinImportanceScore       *float64   `json:"min_importance_score"`
	MinEmotionalSignificance *float64   `json:"min_emotional_significance"`
	MinTemporalRelevance     *float64   `json:"min_temporal_relevance"`
	RetrievalTriggers        []string   `json:"retrieval_triggers"`
	DateRange                *DateRange `json:"date_range"`
}

// SimilaritySearchRequest is the POST /memory-embeddings/similarity payload.
type SimilaritySearchRequest struct {
	FeatureVector []float64      `json:"feature_vector"`
	Limit         *int           `json:"limit"`
	Filters       *SearchFilters `json:"filters"`
}

// BatchCreateRequest wraps up to 50 create-shaped records. Inserts are
// sequential and independent; the batch is not atomic.
type BatchCreateRequest struct {
	Memories []CreateMemoryRequest `json:"memories"`
}

// MemoryFilter is the conjunctive predicate handed to the store adapter.
// Only non-zero/non-nil fields constrain the result set.
type MemoryFilter struct {
	UserID                   string
	MemoryType               string
	MinImportanceScore       *float64
	MinEmotionalSignificance *float64
	MinTemporalRelevance     *float64
	RetrievalTriggers        []string
	CreatedAfter             *time.Time
	CreatedBefore            *time.Time
}

// MemoryQuery is a validated, normalized list query.
type MemoryQuery struct {
	Filter    MemoryFilter
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// MemoryChanges is the partial change-set applied atomically against a single
// record. Nil pointers mean "leave unchanged". UpdatedAt is always set.
type MemoryChanges struct {
	ContentSummary        *string
	ImportanceScore       *float64
	EmotionalSignificance *float64
	TemporalRelevance     *float64
	FeatureVector         *[]float64
	GateScores            *GateScores
	Relationships         *[]string
	ContextNeeded         *map[string]interface{}
	RetrievalTriggers     *[]string
	UpdatedAt             time.Time
}

// Pagination summarizes a query page. total_pages uses ceiling division; the
// validator guarantees limit >= 1 so the math cannot divide by zero.
type Pagination struct {
	TotalCount  int64 `json:"total_count"`
	Page        int   `json:"page"`
	TotalPages  int   `json:"total_pages"`
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// QueryResult is a page of memories plus its pagination summary.
type QueryResult struct {
	Memories   []MemoryEmbedding `json:"memories"`
	Pagination Pagination        `json:"pagination"`
}

// SimilarityResult is the similarity-search response. Max/min similarity are
// 0 (not an error) when the result set is empty.
type SimilarityResult struct {
	QueryDimensions    int            `json:"query_dimensions"`
	ResultCount        int            `json:"result_count"`
	MaxSimilarityScore float64        `json:"max_similarity_score"`
	MinSimilarityScore float64        `json:"min_similarity_score"`
	Memories           []ScoredMemory `json:"memories"`
}

// ScoreAverages holds collection-wide averages of the four numeric scores.
// All zeros (never NaN) on an empty collection.
type ScoreAverages struct {
	ImportanceScore       float64 `json:"importance_score"`
	EmotionalSignificance float64 `json:"emotional_significance"`
	TemporalRelevance     float64 `json:"temporal_relevance"`
	AccessFrequency       float64 `json:"access_frequency"`
}

// MemoryStats is the statistics response.
type MemoryStats struct {
	TotalMemories          int64            `json:"total_memories"`
	MemoriesLast7Days      int64            `json:"memories_last_7_days"`
	MemoryTypeDistribution map[string]int64 `json:"memory_type_distribution"`
	AverageScores          ScoreAverages    `json:"average_scores"`
	VectorDimensions       int              `json:"vector_dimensions"`
}

// AccessResult reports the post-increment access state of a record.
type AccessResult struct {
	ID              string    `json:"id"`
	AccessFrequency int64     `json:"access_frequency"`
	LastAccessed    time.Time `json:"last_accessed"`
}

// BatchResult reports how many records a batch insert persisted. When the
// store fails mid-batch the count covers the successes; they are not rolled
// back.
type BatchResult struct {
	InsertedCount int               `json:"inserted_count"`
	Memories      []MemoryEmbedding `json:"memories"`
}

// DeleteResult confirms a hard delete.
type DeleteResult struct {
	Deleted      bool  `json:"deleted"`
	DeletedCount int64 `json:"deleted_count"`
}
