package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"

	"github.com/nikhilbhutani/audiobookai/pkg/textstats"
)

const (
	mockSampleRate = 8000
	mockMaxSeconds = 5
)

type mockTTS struct{}

// NewMockTTS returns a backend that produces silent 8 kHz mono WAV audio
// whose length follows the narration estimate, capped at a few seconds.
func NewMockTTS() TTSProvider {
	return &mockTTS{}
}

func (m *mockTTS) Name() string { return "mock" }

func (m *mockTTS) MaxInputChars() int { return 0 }

func (m *mockTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seconds := math.Min(textstats.EstimateSpeechSeconds(req.Input, 0), mockMaxSeconds)
	return &SynthesisResult{
		Audio:       silentWAV(int(seconds * mockSampleRate)),
		ContentType: "audio/wav",
	}, nil
}

// silentWAV encodes n samples of 8-bit PCM silence.
func silentWAV(n int) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+n))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(mockSampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(mockSampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(8))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(n))
	buf.Write(bytes.Repeat([]byte{0x80}, n))
	return buf.Bytes()
}
