package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"thientam/internal/httpx"
)

const msgNotConfigured = "Text-to-speech service is not configured"

// Synthesizer is the ElevenLabs surface the handlers need.
type Synthesizer interface {
	Configured() bool
	Speech(ctx context.Context, req Request) ([]byte, error)
	Voices(ctx context.Context) ([]json.RawMessage, error)
	Models(ctx context.Context) ([]json.RawMessage, error)
}

type Handler struct {
	tts Synthesizer
}

func NewHandler(tts Synthesizer) *Handler {
	return &Handler{tts: tts}
}

// Register mounts the /tts routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/text-to-speech", h.speech)
	rg.GET("/voices", h.voices)
	rg.GET("/models", h.models)
	rg.GET("/status", h.status)
}

type speechRequest struct {
	Text          string         `json:"text" binding:"required,min=1,max=5000"`
	VoiceID       string         `json:"voiceId"`
	ModelID       string         `json:"modelId"`
	VoiceSettings *VoiceSettings `json:"voiceSettings"`
}

func (h *Handler) speech(c *gin.Context) {
	var req speechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	if !h.tts.Configured() {
		httpx.Message(c, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}
	audio, err := h.tts.Speech(c.Request.Context(), Request(req))
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to generate speech", err)
		return
	}
	httpx.Log(c).Debug("speech generated", "chars", len([]rune(req.Text)), "bytes", len(audio))
	c.Header("Content-Length", strconv.Itoa(len(audio)))
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func (h *Handler) voices(c *gin.Context) {
	if !h.tts.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": msgNotConfigured, "voices": []any{}})
		return
	}
	voices, err := h.tts.Voices(c.Request.Context())
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to fetch voices", err)
		return
	}
	if voices == nil {
		voices = []json.RawMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"voices": voices})
}

func (h *Handler) models(c *gin.Context) {
	if !h.tts.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": msgNotConfigured, "models": []any{}})
		return
	}
	models, err := h.tts.Models(c.Request.Context())
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to fetch models", err)
		return
	}
	if models == nil {
		models = []json.RawMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (h *Handler) status(c *gin.Context) {
	ok := h.tts.Configured()
	msg := "Text-to-speech service is available"
	if !ok {
		msg = msgNotConfigured
	}
	c.JSON(http.StatusOK, gin.H{"configured": ok, "message": msg})
}
