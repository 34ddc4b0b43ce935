package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
	"github.com/jengzang/trailbloom-backend/internal/models"
	"github.com/jengzang/trailbloom-backend/internal/service"
	"github.com/jengzang/trailbloom-backend/pkg/response"
)

// RefreshRequest is the body of POST /api/v1/admin/refresh
type RefreshRequest struct {
	Mode    string   `json:"mode"`
	Regions []string `json:"regions"`
	From    string   `json:"from"`    // backfill start, YYYY-MM-DD
	To      string   `json:"to"`      // backfill end, YYYY-MM-DD
	RunDate string   `json:"runDate"` // incremental run date, defaults to today
}

// RefreshHandler handles admin refresh requests
type RefreshHandler struct {
	service *service.RefreshService
}

// NewRefreshHandler creates a new refresh handler
func NewRefreshHandler(service *service.RefreshService) *RefreshHandler {
	return &RefreshHandler{service: service}
}

// ToRunRequest validates the body and converts it for the runner
func (r RefreshRequest) ToRunRequest(now time.Time) (analysis.RunRequest, error) {
	mode, err := analysis.ParseMode(r.Mode)
	if err != nil {
		return analysis.RunRequest{}, err
	}
	req := analysis.RunRequest{Regions: r.Regions, Mode: mode, RunAt: now}

	switch mode {
	case analysis.ModeBackfill:
		if r.From == "" || r.To == "" {
			return req, errors.New("backfill requires from and to")
		}
		if req.Range.Start, err = models.ParseDate(r.From); err != nil {
			return req, err
		}
		if req.Range.End, err = models.ParseDate(r.To); err != nil {
			return req, err
		}
		if err := req.Range.Validate(); err != nil {
			return req, err
		}
	case analysis.ModeIncremental:
		if r.RunDate != "" {
			if req.Range.End, err = models.ParseDate(r.RunDate); err != nil {
				return req, err
			}
		}
	}
	return req, nil
}

// Trigger handles POST /api/v1/admin/refresh
func (h *RefreshHandler) Trigger(c *gin.Context) {
	var body RefreshRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}
	req, err := body.ToRunRequest(time.Now())
	if err != nil {
		response.BadRequest(c, "Invalid refresh request", err)
		return
	}

	// a run outlives its request; regions abort only on their own failures
	result, err := h.service.Run(context.WithoutCancel(c.Request.Context()), req)
	switch {
	case errors.Is(err, service.ErrRefreshInProgress):
		response.Error(c, http.StatusConflict, "A refresh is already running", nil)
		return
	case errors.Is(err, analysis.ErrNoRegions):
		response.BadRequest(c, "No regions configured", err)
		return
	case err != nil:
		_ = c.Error(err)
		response.InternalError(c, "Failed to run refresh", nil)
		return
	}

	switch result.Status {
	case analysis.RunSuccess:
		response.Success(c, result)
	case analysis.RunPartialSuccess:
		response.Partial(c, "Some regions failed", result)
	default:
		c.AbortWithStatusJSON(http.StatusBadGateway, response.Response{
			Code:    http.StatusBadGateway,
			Message: "All regions failed",
			Data:    result,
		})
	}
}

// LastRun handles GET /api/v1/admin/refresh/last
func (h *RefreshHandler) LastRun(c *gin.Context) {
	last := h.service.LastRun()
	if last == nil {
		response.NotFound(c, "No refresh has run yet")
		return
	}
	response.Success(c, last)
}
