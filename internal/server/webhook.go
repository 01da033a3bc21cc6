package server

import (
	"net/http"
	"strings"

	"github.com/KristianHans04/ScraperX-sub001/internal/observability/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const signatureHeader = "X-Paystack-Signature"

// IngestProviderWebhook accepts raw provider deliveries. The body is
// read untouched so the signature check covers the exact bytes sent.
func (s *Server) IngestProviderWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	signature := strings.TrimSpace(c.GetHeader(signatureHeader))
	if signature == "" {
		AbortWithError(c, newValidationError("signature", "missing_signature", "signature header is required"))
		return
	}

	if err := s.webhooks.Process(c.Request.Context(), payload, signature); err != nil {
		s.log.Warn("webhook rejected",
			zap.String("signature", logger.MaskSignature(signature)),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
