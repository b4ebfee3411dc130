package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Asker interface {
	Ask(ctx context.Context, message string) (string, error)
}

type AIHandler struct {
	agent Asker
	log   zerolog.Logger
}

// NewAIHandler accepts a nil agent; the endpoint then answers 503.
func NewAIHandler(agent Asker, log zerolog.Logger) *AIHandler {
	return &AIHandler{agent: agent, log: log}
}

type AskRequest struct {
	Message string `json:"message" binding:"required"`
}

// --- POST: /api/admin/ask ---
func (h *AIHandler) AskAI(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Message is required")
		return
	}

	if h.agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Assistant is not configured", "code": "ASSISTANT_DISABLED"})
		return
	}

	response, err := h.agent.Ask(c.Request.Context(), req.Message)
	if err != nil {
		h.log.Error().Err(err).Msg("assistant failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Assistant request failed", "code": "ASSISTANT_FAILED"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": response})
}
