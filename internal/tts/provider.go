package tts

import "context"

// SynthesisRequest holds the parameters for text-to-speech generation.
type SynthesisRequest struct {
	Input string  `json:"input"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// SynthesisResult holds the generated audio and its content type. The audio
// is an opaque payload; callers never inspect it.
type SynthesisResult struct {
	Audio       []byte
	ContentType string // "audio/mpeg" (OpenAI, ElevenLabs) or "audio/wav" (Piper, mock)
}

// TTSProvider is the interface for text-to-speech backends.
type TTSProvider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
	// MaxInputChars is the largest input the backend accepts in one call,
	// or 0 when there is no limit.
	MaxInputChars() int
}
