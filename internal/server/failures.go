package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetPaymentFailure(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	state, err := s.failures.FailureState(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// RunEscalationSweep triggers one escalation pass, the same work the
// background worker does on its interval.
func (s *Server) RunEscalationSweep(c *gin.Context) {
	result, err := s.failures.ProcessEscalation(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
