package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nikhilbhutani/audiobookai/internal/upstream"
)

const elevenLabsMaxInput = 5000

// ElevenLabsConfig holds configuration for the ElevenLabs backend.
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.elevenlabs.io"
	Model   string // default: "eleven_multilingual_v2"
}

// ElevenLabsTTS synthesizes speech with the ElevenLabs text-to-speech API.
type ElevenLabsTTS struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

func NewElevenLabsTTS(cfg ElevenLabsConfig) *ElevenLabsTTS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Model == "" {
		cfg.Model = "eleven_multilingual_v2"
	}
	return &ElevenLabsTTS{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (e *ElevenLabsTTS) Name() string { return "elevenlabs" }

func (e *ElevenLabsTTS) MaxInputChars() int { return elevenLabsMaxInput }

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Speed float64 `json:"speed,omitempty"`
}

// Synthesize converts text to MP3 audio with the requested voice ID.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if req.Voice == "" {
		return nil, upstream.NewTerminalError(e.Name(), "voice id is required", nil)
	}

	body := elevenLabsRequest{Text: req.Input, ModelID: e.cfg.Model}
	if req.Speed > 0 {
		body.VoiceSettings = &elevenLabsVoiceSettings{Speed: req.Speed}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=mp3_44100_128", e.cfg.BaseURL, url.PathEscape(req.Voice))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", upstream.NewTransportError(e.Name(), err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts failed: %w", upstream.NewStatusError(e.Name(), resp.StatusCode, string(respBody)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", upstream.NewTransportError(e.Name(), err))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	return &SynthesisResult{
		Audio:       audio,
		ContentType: contentType,
	}, nil
}
