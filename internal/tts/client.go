package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"

	DefaultVoiceID = "DXiwi9uoxet6zAiZXynP"
	DefaultModelID = "eleven_flash_v2_5"
)

var ErrNotConfigured = errors.New("elevenlabs api key not configured")

type VoiceSettings struct {
	Stability       *float64 `json:"stability" binding:"omitempty,min=0,max=1"`
	SimilarityBoost *float64 `json:"similarityBoost" binding:"omitempty,min=0,max=1"`
	Style           *float64 `json:"style" binding:"omitempty,min=0,max=1"`
	UseSpeakerBoost *bool    `json:"useSpeakerBoost"`
}

type Request struct {
	Text          string
	VoiceID       string
	ModelID       string
	VoiceSettings *VoiceSettings
}

// Client calls the ElevenLabs REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client; an empty key yields an unconfigured client
// whose calls fail with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURL points the client at another host (tests, proxies).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

func (c *Client) Configured() bool { return c.apiKey != "" }

type speechBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings speechSetting `json:"voice_settings"`
}

type speechSetting struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

func orFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func settingsFor(vs *VoiceSettings) speechSetting {
	if vs == nil {
		vs = &VoiceSettings{}
	}
	out := speechSetting{
		Stability:       orFloat(vs.Stability, 0.5),
		SimilarityBoost: orFloat(vs.SimilarityBoost, 0.5),
		Style:           orFloat(vs.Style, 0),
		UseSpeakerBoost: true,
	}
	if vs.UseSpeakerBoost != nil {
		out.UseSpeakerBoost = *vs.UseSpeakerBoost
	}
	return out
}

// Speech returns the MP3 bytes for req.
func (c *Client) Speech(ctx context.Context, req Request) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	voice := req.VoiceID
	if voice == "" {
		voice = DefaultVoiceID
	}
	model := req.ModelID
	if model == "" {
		model = DefaultModelID
	}
	payload, err := json.Marshal(speechBody{Text: req.Text, ModelID: model, VoiceSettings: settingsFor(req.VoiceSettings)})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-to-speech/"+voice, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Voices returns the raw voice objects reported by the API.
func (c *Client) Voices(ctx context.Context) ([]json.RawMessage, error) {
	var out struct {
		Voices []json.RawMessage `json:"voices"`
	}
	if err := c.getJSON(ctx, "/voices", &out); err != nil {
		return nil, err
	}
	return out.Voices, nil
}

func (c *Client) Models(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if err := c.getJSON(ctx, "/models", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

type apiError struct {
	Detail struct {
		Message string `json:"message"`
	} `json:"detail"`
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("xi-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var e apiError
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Detail.Message != "" {
			return nil, fmt.Errorf("elevenlabs api error: %s", e.Detail.Message)
		}
		return nil, fmt.Errorf("elevenlabs api error: %s", resp.Status)
	}
	return resp, nil
}
