package chat

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"thientam/internal/httpx"
)

type Asker interface {
	Configured() bool
	Ask(ctx context.Context, req Request) (string, error)
}

type Handler struct {
	ai Asker
}

func NewHandler(ai Asker) *Handler {
	return &Handler{ai: ai}
}

// Register mounts the /chat routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/ask", h.ask)
	rg.GET("/status", h.status)
}

type askRequest struct {
	Prompt            string    `json:"prompt" binding:"required,min=1"`
	History           []Message `json:"history" binding:"omitempty,dive"`
	SystemInstruction string    `json:"systemInstruction"`
	Temperature       *float64  `json:"temperature" binding:"omitempty,min=0,max=1"`
	MaxOutputTokens   *int      `json:"maxOutputTokens" binding:"omitempty,min=1,max=2048"`
}

func (h *Handler) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Log(c).Warn("chat: invalid request", "err", err)
		httpx.Invalid(c, err)
		return
	}
	preview := []rune(req.Prompt)
	if len(preview) > 80 {
		preview = preview[:80]
	}
	httpx.Log(c).Info("chat request", "prompt", string(preview), "history", len(req.History))

	text, err := h.ai.Ask(c.Request.Context(), Request(req))
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "chat_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"configured": h.ai.Configured()})
}
