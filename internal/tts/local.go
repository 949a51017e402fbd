package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/nikhilbhutani/audiobookai/internal/upstream"
)

// LocalTTSConfig holds configuration for the local Piper TTS backend.
type LocalTTSConfig struct {
	PiperBinPath string // default: "piper"
	ModelPath    string // required: path to the .onnx voice model
}

// LocalTTS synthesizes speech using the Piper binary via subprocess.
// Voice selection and speed are controlled via the model file, not runtime flags.
type LocalTTS struct {
	cfg LocalTTSConfig
}

// NewLocalTTS creates a LocalTTS backed by a local Piper binary.
func NewLocalTTS(cfg LocalTTSConfig) *LocalTTS {
	if cfg.PiperBinPath == "" {
		cfg.PiperBinPath = "piper"
	}
	return &LocalTTS{cfg: cfg}
}

func (l *LocalTTS) Name() string { return "local-piper" }

func (l *LocalTTS) MaxInputChars() int { return 0 }

// Synthesize pipes text into Piper via stdin and returns the WAV output from stdout.
func (l *LocalTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if l.cfg.ModelPath == "" {
		return nil, upstream.NewTerminalError(l.Name(), "piper model path is required (set TTS_LOCAL_PIPER_MODEL)", nil)
	}

	cmd := exec.CommandContext(ctx, l.cfg.PiperBinPath, "--model", l.cfg.ModelPath, "--output_file", "-")

	cmd.Stdin = strings.NewReader(req.Input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("piper: %w", upstream.NewTransportError(l.Name(), ctx.Err()))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// A non-zero exit for the same input and model repeats on retry.
			return nil, upstream.NewTerminalError(l.Name(), strings.TrimSpace(stderr.String()), err)
		}
		return nil, fmt.Errorf("piper: %w", upstream.NewTransportError(l.Name(), err))
	}

	if stdout.Len() == 0 {
		return nil, upstream.NewTerminalError(l.Name(), "piper produced no audio", nil)
	}

	return &SynthesisResult{
		Audio:       stdout.Bytes(),
		ContentType: "audio/wav",
	}, nil
}
