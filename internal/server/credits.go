package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func accountIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_account_id", "invalid account id"))
		return 0, false
	}
	return id, true
}

func (s *Server) GetCredits(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	info, err := s.credits.Balance(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) GetCreditUsage(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, -1, 0)
	if raw := strings.TrimSpace(c.Query("start")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("start", "invalid_time", "must be RFC3339"))
			return
		}
		start = parsed
	}
	if raw := strings.TrimSpace(c.Query("end")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("end", "invalid_time", "must be RFC3339"))
			return
		}
		end = parsed
	}

	summary, err := s.credits.Usage(c.Request.Context(), accountID, start, end)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) GetRecentActivity(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	limit := 10
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	entries, err := s.credits.RecentActivity(c.Request.Context(), accountID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type adjustRequest struct {
	Delta       int64          `json:"delta"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Server) AdjustCredits(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Delta == 0 {
		AbortWithError(c, newValidationError("delta", "invalid_delta", "must be non-zero"))
		return
	}

	result, err := s.credits.Adjust(c.Request.Context(), accountID, req.Delta, req.Description, req.Metadata)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
