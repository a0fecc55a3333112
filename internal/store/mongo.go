package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"memvault/internal/database"
	"memvault/internal/models"
)

// Mongo implements MemoryStore on a MongoDB collection. Vector ranking is
// computed adapter-side over the filtered candidate set, so the contract
// works on any MongoDB deployment, not only Atlas with a vector index.
type Mongo struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

// NewMongo creates a MongoDB-backed memory store.
func NewMongo(db *database.MongoDB) *Mongo {
	return &Mongo{
		db:         db,
		collection: db.Collection(database.CollectionMemoryEmbeddings),
	}
}

// sortFieldMap translates public sort keys to bson field names.
var sortFieldMap = map[string]string{
	models.SortByCreatedAt:             "createdAt",
	models.SortByLastAccessed:          "lastAccessed",
	models.SortByImportanceScore:       "importanceScore",
	models.SortByEmotionalSignificance: "emotionalSignificance",
	models.SortByTemporalRelevance:     "temporalRelevance",
	models.SortByAccessFrequency:       "accessFrequency",
}

// buildBSONFilter folds present-only predicate fields into one conjunctive
// bson filter.
func buildBSONFilter(f *models.MemoryFilter) bson.M {
	filter := bson.M{}
	if f == nil {
		return filter
	}

	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.MemoryType != "" {
		filter["memoryType"] = f.MemoryType
	}
	if f.MinImportanceScore != nil {
		filter["importanceScore"] = bson.M{"$gte": *f.MinImportanceScore}
	}
	if f.MinEmotionalSignificance != nil {
		filter["emotionalSignificance"] = bson.M{"$gte": *f.MinEmotionalSignificance}
	}
	if f.MinTemporalRelevance != nil {
		filter["temporalRelevance"] = bson.M{"$gte": *f.MinTemporalRelevance}
	}
	if len(f.RetrievalTriggers) > 0 {
		filter["retrievalTriggers"] = bson.M{"$in": f.RetrievalTriggers}
	}
	if f.CreatedAfter != nil || f.CreatedBefore != nil {
		createdAt := bson.M{}
		if f.CreatedAfter != nil {
			createdAt["$gte"] = *f.CreatedAfter
		}
		if f.CreatedBefore != nil {
			createdAt["$lte"] = *f.CreatedBefore
		}
		filter["createdAt"] = createdAt
	}

	return filter
}

// buildUpdateDoc translates a partial change-set into a $set document.
// Presence of a pointer, not its value, decides inclusion.
func buildUpdateDoc(changes *models.MemoryChanges) bson.M {
	set := bson.M{"updatedAt": changes.UpdatedAt}

	if changes.ContentSummary != nil {
		set["contentSummary"] = *changes.ContentSummary
	}
	if changes.ImportanceScore != nil {
		set["importanceScore"] = *changes.ImportanceScore
	}
	if changes.EmotionalSignificance != nil {
		set["emotionalSignificance"] = *changes.EmotionalSignificance
	}
	if changes.TemporalRelevance != nil {
		set["temporalRelevance"] = *changes.TemporalRelevance
	}
	if changes.FeatureVector != nil {
		set["featureVector"] = *changes.FeatureVector
	}
	if changes.GateScores != nil {
		set["gateScores"] = *changes.GateScores
	}
	if changes.Relationships != nil {
		set["relationships"] = *changes.Relationships
	}
	if changes.ContextNeeded != nil {
		set["contextNeeded"] = *changes.ContextNeeded
	}
	if changes.RetrievalTriggers != nil {
		set["retrievalTriggers"] = *changes.RetrievalTriggers
	}

	return bson.M{"$set": set}
}

// Insert persists a complete record.
func (s *Mongo) Insert(ctx context.Context, m *models.MemoryEmbedding) error {
	if _, err := s.collection.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

// Get performs a point lookup by id.
func (s *Mongo) Get(ctx context.Context, id string) (*models.MemoryEmbedding, error) {
	var memory models.MemoryEmbedding
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&memory)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return &memory, nil
}

// Update applies the change-set atomically and returns the updated record.
func (s *Mongo) Update(ctx context.Context, id string, changes *models.MemoryChanges) (*models.MemoryEmbedding, error) {
	result := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		buildUpdateDoc(changes),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.MemoryEmbedding
	if err := result.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}
	return &updated, nil
}

// Delete hard-deletes a record by id.
func (s *Mongo) Delete(ctx context.Context, id string) (int64, error) {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, fmt.Errorf("failed to delete memory: %w", err)
	}
	return result.DeletedCount, nil
}

// RecordAccess increments the access counter and stamps the access
// timestamps in a single atomic operation.
func (s *Mongo) RecordAccess(ctx context.Context, id string, now time.Time) (*models.MemoryEmbedding, error) {
	update := bson.M{
		"$inc": bson.M{"accessFrequency": 1},
		"$set": bson.M{"lastAccessed": now, "updatedAt": now},
	}

	result := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.MemoryEmbedding
	if err := result.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to record access: %w", err)
	}
	return &updated, nil
}

// Query runs a filtered, sorted, paginated scan.
func (s *Mongo) Query(ctx context.Context, q *models.MemoryQuery) ([]models.MemoryEmbedding, error) {
	direction := -1
	if q.SortOrder == "asc" {
		direction = 1
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: sortFieldMap[q.SortBy], Value: direction}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))

	cursor, err := s.collection.Find(ctx, buildBSONFilter(&q.Filter), findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer cursor.Close(ctx)

	memories := []models.MemoryEmbedding{}
	if err := cursor.All(ctx, &memories); err != nil {
		return nil, fmt.Errorf("failed to decode memories: %w", err)
	}
	return memories, nil
}

// VectorSearch scans the filtered candidate set and ranks it by cosine
// similarity, descending.
func (s *Mongo) VectorSearch(ctx context.Context, filter *models.MemoryFilter, vector []float64, limit int) ([]models.ScoredMemory, error) {
	cursor, err := s.collection.Find(ctx, buildBSONFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidates: %w", err)
	}
	defer cursor.Close(ctx)

	var candidates []models.MemoryEmbedding
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}

	scored := make([]models.ScoredMemory, 0, len(candidates))
	for _, candidate := range candidates {
		scored = append(scored, models.ScoredMemory{
			MemoryEmbedding: candidate,
			SimilarityScore: CosineSimilarity(vector, candidate.FeatureVector),
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

// Count counts records matching the filter, ignoring pagination.
func (s *Mongo) Count(ctx context.Context, filter *models.MemoryFilter) (int64, error) {
	total, err := s.collection.CountDocuments(ctx, buildBSONFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return total, nil
}

// CountCreatedSince counts records created at or after the given time.
func (s *Mongo) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	total, err := s.collection.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": since}})
	if err != nil {
		return 0, fmt.Errorf("failed to count recent memories: %w", err)
	}
	return total, nil
}

// CountByType groups the record count by memory type.
func (s *Mongo) CountByType(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$memoryType",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate memory types: %w", err)
	}
	defer cursor.Close(ctx)

	distribution := map[string]int64{}
	for cursor.Next(ctx) {
		var row struct {
			Type  string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode type count: %w", err)
		}
		distribution[row.Type] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read type counts: %w", err)
	}
	return distribution, nil
}

// AverageScores averages the four numeric scores across all records.
// Zero values (not NaN) when the collection is empty.
func (s *Mongo) AverageScores(ctx context.Context) (*models.ScoreAverages, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":                   nil,
			"importanceScore":       bson.M{"$avg": "$importanceScore"},
			"emotionalSignificance": bson.M{"$avg": "$emotionalSignificance"},
			"temporalRelevance":     bson.M{"$avg": "$temporalRelevance"},
			"accessFrequency":       bson.M{"$avg": "$accessFrequency"},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate scores: %w", err)
	}
	defer cursor.Close(ctx)

	averages := &models.ScoreAverages{}
	if cursor.Next(ctx) {
		var row struct {
			ImportanceScore       float64 `bson:"importanceScore"`
			EmotionalSignificance float64 `bson:"emotionalSignificance"`
			TemporalRelevance     float64 `bson:"temporalRelevance"`
			AccessFrequency       float64 `bson:"accessFrequency"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode score averages: %w", err)
		}
		averages.ImportanceScore = row.ImportanceScore
		averages.EmotionalSignificance = row.EmotionalSignificance
		averages.TemporalRelevance = row.TemporalRelevance
		averages.AccessFrequency = row.AccessFrequency
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read score averages: %w", err)
	}
	return averages, nil
}

// Ping checks the database connection.
func (s *Mongo) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close disconnects from the database.
func (s *Mongo) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}
