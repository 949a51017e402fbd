package tts

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/audiobookai/internal/upstream"
)

// openAIMaxInput is the documented input ceiling of the speech endpoint.
const openAIMaxInput = 4096

// OpenAITTSConfig holds configuration for the OpenAI TTS backend.
type OpenAITTSConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "tts-1"
}

// OpenAITTS synthesizes speech using OpenAI's TTS API.
type OpenAITTS struct {
	cfg    OpenAITTSConfig
	client *openai.Client
}

// NewOpenAITTS creates an OpenAITTS with sensible defaults applied.
func NewOpenAITTS(cfg OpenAITTSConfig) *OpenAITTS {
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAITTS{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (o *OpenAITTS) Name() string { return "openai-tts" }

func (o *OpenAITTS) MaxInputChars() int { return openAIMaxInput }

// Synthesize converts text to audio and returns the audio bytes as MP3.
func (o *OpenAITTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if len([]rune(req.Input)) > openAIMaxInput {
		return nil, upstream.NewTerminalError(o.Name(), fmt.Sprintf("input exceeds %d characters", openAIMaxInput), nil)
	}

	voice := req.Voice
	if voice == "" {
		voice = string(openai.VoiceNova)
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.cfg.Model),
		Input:          req.Input,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          req.Speed,
	})
	if err != nil {
		if _, ok := upstream.StatusCode(err); ok {
			return nil, fmt.Errorf("tts request: %w", err)
		}
		return nil, fmt.Errorf("tts request: %w", upstream.NewTransportError(o.Name(), err))
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", upstream.NewTransportError(o.Name(), err))
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("read audio: %w", &upstream.Error{Provider: o.Name(), Kind: upstream.Transient, Detail: "empty audio body"})
	}

	return &SynthesisResult{
		Audio:       audio,
		ContentType: "audio/mpeg",
	}, nil
}
