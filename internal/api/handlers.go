// Package api provides the HTTP endpoints for token analysis.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/rugscan/internal/analysis"
	"github.com/mbd888/rugscan/internal/jobs"
	"github.com/mbd888/rugscan/internal/metrics"
	"github.com/mbd888/rugscan/internal/pagination"
	"github.com/mbd888/rugscan/internal/validation"
)

// Handler provides HTTP endpoints for submitting analyses and reading reports.
type Handler struct {
	service *analysis.Service
	queue   *jobs.Queue
	chains  []string
	maxAge  time.Duration // how old a stored report can be and still satisfy an analyze request
}

// NewHandler creates a new analysis handler. chains lists the supported
// chain identifiers; maxAge bounds report reuse on POST /analyze.
func NewHandler(service *analysis.Service, queue *jobs.Queue, chains []string, maxAge time.Duration) *Handler {
	return &Handler{service: service, queue: queue, chains: chains, maxAge: maxAge}
}

// RegisterRoutes sets up the analysis routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/analyze", h.Analyze)
	r.GET("/jobs/:id", h.GetJob)
	r.GET("/reports", h.ListReports)
	r.GET("/reports/:chain/:address", h.GetReport)
	r.GET("/chains", h.ListChains)
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
}

// Analyze handles POST /v1/analyze
//
// A fresh report answers immediately with status "completed". Otherwise
// the token is queued and the caller polls the job or subscribes to the
// WebSocket feed.
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if req.Chain == "" {
		req.Chain = "ethereum"
	}
	req.Address = validation.SanitizeAddress(req.Address)

	if errs := validation.Validate(
		validation.Required("address", req.Address),
		validation.ValidAddress("address", req.Address),
		validation.ValidChain("chain", req.Chain, h.chains),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	chain := strings.ToLower(req.Chain)
	if report, ok := h.service.CachedReport(c.Request.Context(), chain, req.Address, h.maxAge); ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "completed", "report": report})
		return
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	job, _, err := h.queue.Enqueue(chain, req.Address)
	if err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "queue_full",
				"message": "Analysis backlog is full, retry shortly",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "processing", "jobId": job.ID})
}

// GetJob handles GET /v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.queue.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetReport handles GET /v1/reports/:chain/:address
func (h *Handler) GetReport(c *gin.Context) {
	chain := strings.ToLower(c.Param("chain"))
	address := validation.SanitizeAddress(c.Param("address"))

	if errs := validation.Validate(
		validation.ValidAddress("address", address),
		validation.ValidChain("chain", chain, h.chains),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
		})
		return
	}

	report, err := h.service.StoredReport(c.Request.Context(), chain, address)
	if err != nil {
		if errors.Is(err, analysis.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "No report for this token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListReports handles GET /v1/reports
//
// Pages with an opaque cursor keyed on (updatedAt, chain:address); the
// first page needs no cursor.
func (h *Handler) ListReports(c *gin.Context) {
	limit := parseLimit(c, 50, 200)

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "Cursor is malformed",
		})
		return
	}
	var before time.Time
	var key string
	if cursor != nil {
		before, key = cursor.CreatedAt, cursor.ID
	}

	// Fetch one extra row to know whether another page exists.
	reports, err := h.service.RecentReports(c.Request.Context(), before, key, limit+1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	page, next, hasMore := pagination.ComputePage(reports, limit, func(r *analysis.Report) (time.Time, string) {
		return r.UpdatedAt, analysis.PageKey(r)
	})

	resp := gin.H{"reports": page, "count": len(page), "hasMore": hasMore}
	if next != "" {
		resp["nextCursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}

// ListChains handles GET /v1/chains
func (h *Handler) ListChains(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chains": h.chains})
}

func parseLimit(c *gin.Context, defaultLimit, maxLimit int) int {
	limit := defaultLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}
	return limit
}
