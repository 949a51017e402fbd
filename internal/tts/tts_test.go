package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nikhilbhutani/audiobookai/internal/upstream"
)

func TestOpenAITTSSynthesize(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	p := NewOpenAITTS(OpenAITTSConfig{APIKey: "sk-test", BaseURL: srv.URL})
	res, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "Hello there.", Voice: "alloy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != "ID3fake" || res.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotBody["voice"] != "alloy" || gotBody["model"] != "tts-1" || gotBody["input"] != "Hello there." {
		t.Fatalf("unexpected request body %v", gotBody)
	}
}

func TestOpenAITTSClassifiesStatus(t *testing.T) {
	cases := []struct {
		status int
		want   upstream.Kind
	}{
		{http.StatusTooManyRequests, upstream.Transient},
		{http.StatusServiceUnavailable, upstream.Transient},
		{http.StatusBadRequest, upstream.Terminal},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
		}))
		p := NewOpenAITTS(OpenAITTSConfig{APIKey: "sk-test", BaseURL: srv.URL})
		_, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "Hi.", Voice: "nova"})
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if got := upstream.Classify(err); got != tc.want {
			t.Fatalf("status %d: expected %s, got %s (%v)", tc.status, tc.want, got, err)
		}
	}
}

func TestOpenAITTSRejectsOversizedInput(t *testing.T) {
	p := NewOpenAITTS(OpenAITTSConfig{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"})
	_, err := p.Synthesize(context.Background(), SynthesisRequest{Input: strings.Repeat("a", openAIMaxInput+1)})
	if err == nil || upstream.IsRetryable(err) {
		t.Fatalf("expected terminal error, got %v", err)
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	var gotReq elevenLabsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice-123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "xi-test" {
			t.Errorf("missing api key header")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xff, 0xfb, 0x90})
	}))
	defer srv.Close()

	p := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "xi-test", BaseURL: srv.URL})
	res, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "Chapter one.", Voice: "voice-123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Audio) != 3 || res.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotReq.Text != "Chapter one." || gotReq.ModelID != "eleven_multilingual_v2" {
		t.Fatalf("unexpected request %+v", gotReq)
	}
}

func TestElevenLabsStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "busy") {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":{"status":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	p := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "bad", BaseURL: srv.URL})

	_, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "x", Voice: "busy"})
	if !upstream.IsRetryable(err) {
		t.Fatalf("expected 429 to be retryable, got %v", err)
	}

	_, err = p.Synthesize(context.Background(), SynthesisRequest{Input: "x", Voice: "v"})
	var upErr *upstream.Error
	if !errors.As(err, &upErr) || upErr.StatusCode != http.StatusUnauthorized || upErr.Kind != upstream.Terminal {
		t.Fatalf("expected terminal 401, got %v", err)
	}
}

func TestElevenLabsRequiresVoice(t *testing.T) {
	p := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "xi"})
	if _, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "x"}); upstream.IsRetryable(err) {
		t.Fatalf("expected terminal error, got %v", err)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "piper")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestLocalTTSPipesInput(t *testing.T) {
	bin := writeScript(t, "cat")
	p := NewLocalTTS(LocalTTSConfig{PiperBinPath: bin, ModelPath: "voice.onnx"})

	res, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "narrate me"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != "narrate me" || res.ContentType != "audio/wav" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLocalTTSExitIsTerminal(t *testing.T) {
	bin := writeScript(t, "echo 'bad model' >&2; exit 3")
	p := NewLocalTTS(LocalTTSConfig{PiperBinPath: bin, ModelPath: "voice.onnx"})

	_, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "x"})
	if err == nil || upstream.IsRetryable(err) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad model") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestLocalTTSRequiresModel(t *testing.T) {
	p := NewLocalTTS(LocalTTSConfig{})
	if _, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "x"}); err == nil {
		t.Fatal("expected error without model path")
	}
}

func TestMockTTSProducesWAV(t *testing.T) {
	p := NewMockTTS()
	res, err := p.Synthesize(context.Background(), SynthesisRequest{Input: strings.Repeat("word ", 10)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(res.Audio), "RIFF") || string(res.Audio[8:12]) != "WAVE" {
		t.Fatalf("expected WAV header, got %q", res.Audio[:12])
	}
	// 10 words at 150 wpm is 4 seconds.
	if want := 44 + 4*mockSampleRate; len(res.Audio) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(res.Audio))
	}
}
