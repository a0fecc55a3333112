package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"memvault/internal/models"
	"memvault/internal/services"
	"memvault/internal/store"
	"memvault/internal/validation"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	batchTimeout = 30 * time.Second
)

// MemoryHandler handles memory embedding API endpoints
type MemoryHandler struct {
	service *services.MemoryService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(service *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{service: service}
}

// Create stores a new memory embedding
// POST /memory-embeddings
func (h *MemoryHandler) Create(c *fiber.Ctx) error {
	var req models.CreateMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON body", nil)
	}

	if verr := validation.ValidateCreate(&req); verr != nil {
		return badRequest(c, "Validation failed", verr.Violations)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	memory, err := h.service.Create(ctx, &req)
	if err != nil {
		return h.storeError(c, "create", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    memory,
		"message": "Memory embedding stored successfully",
	})
}

// Get returns a single memory embedding by ID
// GET /memory-embeddings/:id
func (h *MemoryHandler) Get(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	memory, err := h.service.Get(ctx, c.Params("id"))
	if err != nil {
		return h.storeError(c, "get", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    memory,
	})
}

// Update applies partial changes to a memory embedding
// PUT /memory-embeddings/:id
func (h *MemoryHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON body", nil)
	}

	if verr := validation.ValidateUpdate(&req); verr != nil {
		return badRequest(c, "Validation failed", verr.Violations)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	memory, err := h.service.Update(ctx, c.Params("id"), &req)
	if err != nil {
		return h.storeError(c, "update", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    memory,
		"message": "Memory embedding updated successfully",
	})
}

// Delete removes a memory embedding
// DELETE /memory-embeddings/:id
func (h *MemoryHandler) Delete(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	result, err := h.service.Delete(ctx, c.Params("id"))
	if err != nil {
		return h.storeError(c, "delete", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
		"message": "Memory embedding deleted successfully",
	})
}

// RecordAccess bumps the access counter and last-accessed timestamp
// POST /memory-embeddings/:id/access
func (h *MemoryHandler) RecordAccess(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	result, err := h.service.RecordAccess(ctx, c.Params("id"))
	if err != nil {
		return h.storeError(c, "record_access", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
		"message": "Memory access recorded",
	})
}

// SimilaritySearch ranks stored vectors by cosine similarity to the query vector
// POST /memory-embeddings/similarity
func (h *MemoryHandler) SimilaritySearch(c *fiber.Ctx) error {
	var req models.SimilaritySearchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON body", nil)
	}

	if verr := validation.ValidateSimilarity(&req); verr != nil {
		return badRequest(c, "Validation failed", verr.Violations)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	result, err := h.service.SimilaritySearch(ctx, &req)
	if err != nil {
		return h.storeError(c, "similarity_search", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// BatchCreate stores multiple memory embeddings in one request
// POST /memory-embeddings/batch
func (h *MemoryHandler) BatchCreate(c *fiber.Ctx) error {
	var req models.BatchCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON body", nil)
	}

	if verr := validation.ValidateBatch(&req); verr != nil {
		return badRequest(c, "Validation failed", verr.Violations)
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	result, err := h.service.BatchCreate(ctx, &req)
	if err != nil {
		// Inserts are sequential, a failure leaves earlier records in place.
		log.Printf("❌ [MEMORY-API] Batch create failed after %d inserts: %v", result.InsertedCount, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Batch insert failed",
			"details": fiber.Map{
				"inserted_count": result.InsertedCount,
				"requested":      len(req.Memories),
			},
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    result,
		"message": "Batch insert completed",
	})
}

// Query returns a filtered, sorted, paginated listing
// GET /memory-embeddings/query
func (h *MemoryHandler) Query(c *fiber.Ctx) error {
	return h.runQuery(c, queryParamsFromCtx(c))
}

// QueryByUser lists memories for one user, newest first
// GET /memory-embeddings/user/:user_id
func (h *MemoryHandler) QueryByUser(c *fiber.Ctx) error {
	p := queryParamsFromCtx(c)
	p.UserID = c.Params("user_id")
	return h.runQuery(c, p)
}

// QueryByType lists memories of one type across users
// GET /memory-embeddings/type/:memory_type
func (h *MemoryHandler) QueryByType(c *fiber.Ctx) error {
	p := queryParamsFromCtx(c)
	p.MemoryType = c.Params("memory_type")
	return h.runQuery(c, p)
}

// Stats returns collection-level statistics
// GET /memory-embeddings/stats
func (h *MemoryHandler) Stats(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	stats, err := h.service.Statistics(ctx)
	if err != nil {
		return h.storeError(c, "stats", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

func (h *MemoryHandler) runQuery(c *fiber.Ctx, p validation.QueryParams) error {
	q, verr := validation.ValidateQuery(p)
	if verr != nil {
		return badRequest(c, "Validation failed", verr.Violations)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, q)
	if err != nil {
		return h.storeError(c, "query", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

func queryParamsFromCtx(c *fiber.Ctx) validation.QueryParams {
	return validation.QueryParams{
		UserID:                   c.Query("user_id"),
		MemoryType:               c.Query("memory_type"),
		MinImportanceScore:       c.Query("min_importance_score"),
		MinEmotionalSignificance: c.Query("min_emotional_significance"),
		MinTemporalRelevance:     c.Query("min_temporal_relevance"),
		DateStart:                c.Query("date_start"),
		DateEnd:                  c.Query("date_end"),
		Limit:                    c.Query("limit"),
		Offset:                   c.Query("offset"),
		SortBy:                   c.Query("sort_by"),
		SortOrder:                c.Query("sort_order"),
	}
}

// storeError maps service errors onto the response envelope.
func (h *MemoryHandler) storeError(c *fiber.Ctx, op string, err error) error {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		return badRequest(c, "Validation failed", verr.Violations)
	}

	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Memory embedding not found",
		})
	}

	log.Printf("❌ [MEMORY-API] %s failed: %v", op, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Internal server error",
	})
}

func badRequest(c *fiber.Ctx, msg string, details []string) error {
	body := fiber.Map{
		"success": false,
		"error":   msg,
	}
	if len(details) > 0 {
		body["details"] = details
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
