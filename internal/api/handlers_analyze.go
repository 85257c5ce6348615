package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/structured-prompt/promptsvc/internal/logging"
	"github.com/structured-prompt/promptsvc/internal/provider"
	"github.com/structured-prompt/promptsvc/internal/schema"
	"github.com/structured-prompt/promptsvc/internal/service"
)

// handleAnalyze runs the analysis pipeline for one prompt.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req service.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
		return
	}

	requestID := logging.GinRequestID(c)
	if requestID == "" {
		requestID = logging.NewRequestID()
	}
	ctx := logging.WithRequestID(c.Request.Context(), requestID)

	result, err := s.deps.Processor.Analyze(ctx, &req, requestID, currentKeyID(c))
	if err != nil {
		writeAnalyzeError(c, err)
		return
	}
	if result.TOON != "" {
		c.Header("X-Request-ID", result.Meta.RequestID)
		c.Header("X-Provider", result.Meta.Provider)
		c.Header("X-Tokens-Used", strconv.Itoa(result.Meta.TokensUsed))
		c.Data(http.StatusOK, "text/toon; charset=utf-8", []byte(result.TOON))
		return
	}
	c.JSON(http.StatusOK, result)
}

func writeAnalyzeError(c *gin.Context, err error) {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		abortWithError(c, http.StatusUnprocessableEntity, "validation_error", verr.Error())
		return
	}
	if pe, ok := provider.AsError(err); ok {
		abortWithError(c, pe.HTTPStatus(), string(pe.Kind), pe.Error())
		return
	}
	abortWithError(c, http.StatusInternalServerError, "internal_error", err.Error())
}

// handleAnalyzeBatch analyzes several prompts in one provider round trip.
func (s *Server) handleAnalyzeBatch(c *gin.Context) {
	var req service.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
		return
	}
	result, err := s.deps.Processor.AnalyzeBatch(c.Request.Context(), &req)
	if err != nil {
		writeAnalyzeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleProviders probes each provider and reports availability.
func (s *Server) handleProviders(c *gin.Context) {
	infos := s.deps.Router.AvailableProviders(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"providers": infos})
}
