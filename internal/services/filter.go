package services

import (
	"memvault/internal/models"
	"memvault/internal/validation"
)

// buildSearchFilter folds the present-only fields of a similarity filter
// sub-object into the conjunctive store predicate. Date strings were already
// vetted by the validator; unparseable bounds are simply skipped.
func buildSearchFilter(f *models.SearchFilters) *models.MemoryFilter {
	filter := &models.MemoryFilter{}
	if f == nil {
		return filter
	}

	if f.UserID != nil {
		filter.UserID = *f.UserID
	}
	if f.MemoryType != nil {
		filter.MemoryType = *f.MemoryType
	}
	filter.MinImportanceScore = f.MinImportanceScore
	filter.MinEmotionalSignificance = f.MinEmotionalSignificance
	filter.MinTemporalRelevance = f.MinTemporalRelevance
	filter.RetrievalTriggers = f.RetrievalTriggers

	if f.DateRange != nil {
		if f.DateRange.Start != "" {
			if t, err := validation.ParseDate(f.DateRange.Start); err == nil {
				filter.CreatedAfter = &t
			}
		}
		if f.DateRange.End != "" {
			if t, err := validation.ParseDate(f.DateRange.End); err == nil {
				filter.CreatedBefore = &t
			}
		}
	}

	return filter
}
