package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"memvault/internal/models"
)

// Request-level bounds
const (
	MaxContentSummaryLength = 5000
	MaxBatchSize            = 50
	MaxLimit                = 100
	DefaultSimilarityLimit  = 10
	DefaultQueryLimit       = 20
)

// ValidationError carries every violated field, not just the first. The
// joined message is the caller-facing contract.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

func errOrNil(violations []string) *ValidationError {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

// ValidateCreate checks a create request against the full record rules and
// normalizes nil collections to empty ones.
func ValidateCreate(req *models.CreateMemoryRequest) *ValidationError {
	var violations []string
	checkCreate(req, "", &violations)
	return errOrNil(violations)
}

// checkCreate accumulates create-rule violations, prefixing field names for
// batch items ("memories[3].user_id is required").
func checkCreate(req *models.CreateMemoryRequest, prefix string, violations *[]string) {
	add := func(format string, args ...interface{}) {
		*violations = append(*violations, prefix+fmt.Sprintf(format, args...))
	}

	if req.UserID == "" {
		add("user_id is required")
	}
	if req.MemoryType == "" {
		add("memory_type is required")
	} else if !models.ValidMemoryTypes[req.MemoryType] {
		add("memory_type must be one of: %s", memoryTypeList())
	}
	if req.ContentSummary == "" {
		add("content_summary is required")
	} else if utf8.RuneCountInString(req.ContentSummary) > MaxContentSummaryLength {
		add("content_summary must be at most %d characters", MaxContentSummaryLength)
	}
	if req.OriginalEntryID == "" {
		add("original_entry_id is required")
	}

	checkUnitScore("importance_score", req.ImportanceScore, true, prefix, violations)
	checkUnitScore("emotional_significance", req.EmotionalSignificance, true, prefix, violations)
	checkUnitScore("temporal_relevance", req.TemporalRelevance, true, prefix, violations)

	if req.FeatureVector == nil {
		add("feature_vector is required")
	} else if len(req.FeatureVector) != models.VectorDimensions {
		add("feature_vector must contain exactly %d elements, got %d", models.VectorDimensions, len(req.FeatureVector))
	}

	if req.GateScores == nil {
		add("gate_scores is required")
	} else {
		checkGateScores(req.GateScores, prefix, violations)
	}

	// Defaults for omitted optional collections
	if req.Relationships == nil {
		req.Relationships = []string{}
	}
	if req.ContextNeeded == nil {
		req.ContextNeeded = map[string]interface{}{}
	}
	if req.RetrievalTriggers == nil {
		req.RetrievalTriggers = []string{}
	}
}

// ValidateUpdate checks whichever fields are present against the create
// constraints. An empty update is accepted (a no-op apart from updated_at).
func ValidateUpdate(req *models.UpdateMemoryRequest) *ValidationError {
	var violations []string
	add := func(format string, args ...interface{}) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	if req.ContentSummary != nil {
		if *req.ContentSummary == "" {
			add("content_summary must not be empty")
		} else if utf8.RuneCountInString(*req.ContentSummary) > MaxContentSummaryLength {
			add("content_summary must be at most %d characters", MaxContentSummaryLength)
		}
	}
	checkUnitScore("importance_score", req.ImportanceScore, false, "", &violations)
	checkUnitScore("emotional_significance", req.EmotionalSignificance, false, "", &violations)
	checkUnitScore("temporal_relevance", req.TemporalRelevance, false, "", &violations)
	if req.FeatureVector != nil && len(*req.FeatureVector) != models.VectorDimensions {
		add("feature_vector must contain exactly %d elements, got %d", models.VectorDimensions, len(*req.FeatureVector))
	}
	if req.GateScores != nil {
		checkGateScores(req.GateScores, "", &violations)
	}

	return errOrNil(violations)
}

// ValidateSimilarity checks a similarity-search request and applies the
// default limit of 10 when none was supplied.
func ValidateSimilarity(req *models.SimilaritySearchRequest) *ValidationError {
	var violations []string

	if req.FeatureVector == nil {
		violations = append(violations, "feature_vector is required")
	} else if len(req.FeatureVector) != models.VectorDimensions {
		violations = append(violations,
			fmt.Sprintf("feature_vector must contain exactly %d elements, got %d", models.VectorDimensions, len(req.FeatureVector)))
	}

	if req.Limit == nil {
		limit := DefaultSimilarityLimit
		req.Limit = &limit
	} else if *req.Limit < 1 || *req.Limit > MaxLimit {
		violations = append(violations, fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}

	if req.Filters != nil {
		checkFilters(req.Filters, &violations)
	}

	return errOrNil(violations)
}

// ValidateBatch checks every record with the create rules. Any failing record
// rejects the whole batch; nothing is inserted on partial validity.
func ValidateBatch(req *models.BatchCreateRequest) *ValidationError {
	var violations []string

	if len(req.Memories) == 0 {
		violations = append(violations, "memories must contain at least 1 record")
		return errOrNil(violations)
	}
	if len(req.Memories) > MaxBatchSize {
		violations = append(violations,
			fmt.Sprintf("memories must contain at most %d records, got %d", MaxBatchSize, len(req.Memories)))
		return errOrNil(violations)
	}

	for i := range req.Memories {
		checkCreate(&req.Memories[i], fmt.Sprintf("memories[%d].", i), &violations)
	}

	return errOrNil(violations)
}

// QueryParams carries the raw query-string values of a list request.
// Parsing failures are validation violations, not transport errors.
type QueryParams struct {
	UserID                   string
	MemoryType               string
	MinImportanceScore       string
	MinEmotionalSignificance string
	MinTemporalRelevance     string
	DateStart                string
	DateEnd                  string
	Limit                    string
	Offset                   string
	SortBy                   string
	SortOrder                string
}

// ValidateQuery parses and checks list-query parameters, returning a
// normalized query with defaults applied (limit 20, offset 0, sort by
// created_at descending). A supplied limit of 0 is a violation, never a
// divide-by-zero downstream.
func ValidateQuery(p QueryParams) (*models.MemoryQuery, *ValidationError) {
	var violations []string
	add := func(format string, args ...interface{}) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	q := &models.MemoryQuery{
		Limit:     DefaultQueryLimit,
		Offset:    0,
		SortBy:    models.SortByCreatedAt,
		SortOrder: "desc",
	}
	q.Filter.UserID = p.UserID

	if p.MemoryType != "" {
		if !models.ValidMemoryTypes[p.MemoryType] {
			add("memory_type must be one of: %s", memoryTypeList())
		} else {
			q.Filter.MemoryType = p.MemoryType
		}
	}

	q.Filter.MinImportanceScore = parseUnitScore("min_importance_score", p.MinImportanceScore, &violations)
	q.Filter.MinEmotionalSignificance = parseUnitScore("min_emotional_significance", p.MinEmotionalSignificance, &violations)
	q.Filter.MinTemporalRelevance = parseUnitScore("min_temporal_relevance", p.MinTemporalRelevance, &violations)

	if p.DateStart != "" {
		if t, err := ParseDate(p.DateStart); err != nil {
			add("date_range.start must be an ISO timestamp")
		} else {
			q.Filter.CreatedAfter = &t
		}
	}
	if p.DateEnd != "" {
		if t, err := ParseDate(p.DateEnd); err != nil {
			add("date_range.end must be an ISO timestamp")
		} else {
			q.Filter.CreatedBefore = &t
		}
	}

	if p.Limit != "" {
		n, err := strconv.Atoi(p.Limit)
		if err != nil || n < 1 || n > MaxLimit {
			add("limit must be an integer between 1 and %d", MaxLimit)
		} else {
			q.Limit = n
		}
	}
	if p.Offset != "" {
		n, err := strconv.Atoi(p.Offset)
		if err != nil || n < 0 {
			add("offset must be a non-negative integer")
		} else {
			q.Offset = n
		}
	}

	if p.SortBy != "" {
		if !models.ValidSortFields[p.SortBy] {
			add("sort_by must be one of: %s", sortFieldList())
		} else {
			q.SortBy = p.SortBy
		}
	}
	if p.SortOrder != "" {
		if p.SortOrder != "asc" && p.SortOrder != "desc" {
			add("sort_order must be asc or desc")
		} else {
			q.SortOrder = p.SortOrder
		}
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return q, nil
}

// checkFilters validates the optional similarity filter sub-object.
func checkFilters(f *models.SearchFilters, violations *[]string) {
	add := func(format string, args ...interface{}) {
		*violations = append(*violations, fmt.Sprintf(format, args...))
	}

	if f.MemoryType != nil && !models.ValidMemoryTypes[*f.MemoryType] {
		add("filters.memory_type must be one of: %s", memoryTypeList())
	}
	checkUnitScore("filters.min_importance_score", f.MinImportanceScore, false, "", violations)
	checkUnitScore("filters.min_emotional_significance", f.MinEmotionalSignificance, false, "", violations)
	checkUnitScore("filters.min_temporal_relevance", f.MinTemporalRelevance, false, "", violations)
	if f.DateRange != nil {
		if f.DateRange.Start != "" {
			if _, err := ParseDate(f.DateRange.Start); err != nil {
				add("filters.date_range.start must be an ISO timestamp")
			}
		}
		if f.DateRange.End != "" {
			if _, err := ParseDate(f.DateRange.End); err != nil {
				add("filters.date_range.end must be an ISO timestamp")
			}
		}
	}
}

// checkGateScores validates the fixed four-field block; all fields required
// together, each in [0,1].
func checkGateScores(g *models.GateScores, prefix string, violations *[]string) {
	fields := []struct {
		name  string
		value float64
	}{
		{"forget_score", g.ForgetScore},
		{"input_score", g.InputScore},
		{"output_score", g.OutputScore},
		{"confidence", g.Confidence},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > 1 {
			*violations = append(*violations,
				fmt.Sprintf("%sgate_scores.%s must be between 0 and 1", prefix, f.name))
		}
	}
}

// checkUnitScore validates an optional-or-required [0,1] float.
func checkUnitScore(name string, value *float64, required bool, prefix string, violations *[]string) {
	if value == nil {
		if required {
			*violations = append(*violations, prefix+name+" is required")
		}
		return
	}
	if *value < 0 || *value > 1 {
		*violations = append(*violations, prefix+name+" must be between 0 and 1")
	}
}

// parseUnitScore parses an optional [0,1] float from a query string.
func parseUnitScore(name, raw string, violations *[]string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		*violations = append(*violations, name+" must be a number between 0 and 1")
		return nil
	}
	return &v
}

// ParseDate accepts RFC3339 or a bare date (taken as midnight UTC).
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func memoryTypeList() string {
	names := make([]string, 0, len(models.ValidMemoryTypes))
	for name := range models.ValidMemoryTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func sortFieldList() string {
	names := make([]string, 0, len(models.ValidSortFields))
	for name := range models.ValidSortFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
