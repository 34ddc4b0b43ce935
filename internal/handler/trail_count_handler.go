package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
	"github.com/jengzang/trailbloom-backend/internal/models"
	"github.com/jengzang/trailbloom-backend/internal/repository"
	"github.com/jengzang/trailbloom-backend/internal/service"
	"github.com/jengzang/trailbloom-backend/pkg/response"
)

// MaxTrailCountLimit caps the ranked list size
const MaxTrailCountLimit = 500

// TrailCountHandler handles HTTP requests for trail summaries
type TrailCountHandler struct {
	service *service.TrailCountService
}

// NewTrailCountHandler creates a new trail count handler
func NewTrailCountHandler(service *service.TrailCountService) *TrailCountHandler {
	return &TrailCountHandler{service: service}
}

// ListTrailCounts handles GET /api/v1/regions/:region/trail-counts
func (h *TrailCountHandler) ListTrailCounts(c *gin.Context) {
	var filter models.TrailCountFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}
	if filter.Limit < 0 || filter.MinCount < 0 {
		response.BadRequest(c, "limit and minCount must not be negative", nil)
		return
	}
	if filter.Limit == 0 || filter.Limit > MaxTrailCountLimit {
		filter.Limit = MaxTrailCountLimit
	}

	rows, err := h.service.ListTrailCounts(c.Request.Context(), c.Param("region"), filter)
	if err != nil {
		writeLookupError(c, "Failed to get trail counts", err)
		return
	}

	response.Success(c, gin.H{
		"region": analysis.NormalizeRegion(c.Param("region")),
		"data":   rows,
		"total":  len(rows),
	})
}

// GetTrailCount handles GET /api/v1/regions/:region/trail-counts/:trail
func (h *TrailCountHandler) GetTrailCount(c *gin.Context) {
	row, err := h.service.GetTrailCount(c.Request.Context(), c.Param("region"), c.Param("trail"))
	if err != nil {
		writeLookupError(c, "Failed to get trail count", err)
		return
	}
	response.Success(c, row)
}

// GetRegionSummary handles GET /api/v1/regions/:region/summary
func (h *TrailCountHandler) GetRegionSummary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("region"))
	if err != nil {
		writeLookupError(c, "Failed to summarize region", err)
		return
	}
	response.Success(c, summary)
}

func writeLookupError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, analysis.ErrInvalidRegion):
		response.NotFound(c, "Unknown region")
	case errors.Is(err, repository.ErrNotFound):
		response.NotFound(c, "Trail not found")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, message, nil)
	}
}
