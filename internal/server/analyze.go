package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/paralogia/internal/cache"
	"github.com/ppiankov/paralogia/internal/ratelimit"
)

// analyzeRequest is the inbound request shape. Validation happens here, at
// the transport boundary, before anything reaches the core.
type analyzeRequest struct {
	Text      string `json:"text" binding:"required,min=1,max=5000"`
	Stream    bool   `json:"stream"`
	SkipCache bool   `json:"skipCache"`
}

// handleAnalyze serves both delivery modes: a single blocking JSON response,
// or an SSE sequence of snapshots terminated by the final result.
func (s *Server) handleAnalyze(c *gin.Context) {
	decision := s.limiter.Admit(c.ClientIP())
	setRateLimitHeaders(c, decision)

	if !decision.Allowed {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     "Too many requests",
			"limit":     decision.Limit,
			"remaining": decision.Remaining,
			"reset":     decision.ResetAt.Unix(),
		})
		return
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	if req.Stream {
		s.streamAnalysis(c, req)
		return
	}

	result, err := s.detector.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to analyze text"})
		return
	}

	if req.SkipCache {
		c.Header("Cache-Control", "no-store")
	} else {
		c.Header("Cache-Control", "public, max-age=86400")
		c.Header("ETag", fmt.Sprintf("%q", cache.AnalysisKey(req.Text)))
	}
	c.JSON(http.StatusOK, result)
}

// streamAnalysis frames snapshots as Server-Sent Events, one event per
// snapshot, and ends the stream after the final result. A client disconnect
// cancels the request context, which stops the upstream model call.
func (s *Server) streamAnalysis(c *gin.Context, req analyzeRequest) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for result, err := range s.detector.AnalyzeStream(c.Request.Context(), req.Text, req.SkipCache) {
		if err != nil {
			// The stream is already open; all we can do is log and end it.
			s.log.Error("streaming analysis failed", "error", err)
			return
		}
		payload, err := json.Marshal(result)
		if err != nil {
			s.log.Error("snapshot marshal failed", "error", err)
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return
		}
		c.Writer.Flush()
	}
}

// setRateLimitHeaders renders the admission decision as standard rate-limit
// response headers on every analyze response.
func setRateLimitHeaders(c *gin.Context, d ratelimit.Decision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}
