package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nikhilbhutani/audiobookai/internal/api/handlers"
	"github.com/nikhilbhutani/audiobookai/internal/audiobook"
	"github.com/nikhilbhutani/audiobookai/internal/cache"
	"github.com/nikhilbhutani/audiobookai/internal/config"
	"github.com/nikhilbhutani/audiobookai/internal/jobs"
	"github.com/nikhilbhutani/audiobookai/internal/publish"
	"github.com/nikhilbhutani/audiobookai/internal/queue"
	"github.com/nikhilbhutani/audiobookai/internal/runlog"
	"github.com/nikhilbhutani/audiobookai/internal/storage"
)

type stubGenerator struct {
	err error
}

func (g stubGenerator) Generate(_ context.Context, req audiobook.Request) (*audiobook.Artifact, error) {
	if g.err != nil {
		return nil, g.err
	}
	results := []audiobook.ChapterResult{
		{Index: 0, Text: "Lava flows.", Status: audiobook.ChapterSucceeded, Audio: []byte("ID3-audio"), ContentType: "audio/mpeg", Attempts: 1, DurationEstimateSeconds: 0.8},
		{Index: 1, Text: "Ash falls.", Status: audiobook.ChapterFailed, Attempts: 4, FailureKind: audiobook.FailureRetryableExhausted, ErrorMessage: "speech synthesis failed"},
	}
	voice := req.Voice
	if voice == "" {
		voice = "nova"
	}
	return audiobook.Assemble(req.Topic, audiobook.Script{Text: "Lava flows.\n\nAsh falls."}, results, voice, "en"), nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = b
	m.mu.Unlock()
	return nil
}

func (m *memStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type fakeQueue struct {
	err      error
	payloads []queue.AudiobookGeneratePayload
}

func (q *fakeQueue) EnqueueAudiobookGenerate(_ context.Context, p queue.AudiobookGeneratePayload) error {
	if q.err != nil {
		return q.err
	}
	q.payloads = append(q.payloads, p)
	return nil
}

type testServer struct {
	handler http.Handler
	audio   *storage.MemoryStore
	tracker *jobs.Tracker
	queue   *fakeQueue
}

func newTestServer(t *testing.T, gen handlers.Generator, checks ...handlers.Check) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.RateLimitRPS = 1000
	cfg.Server.RateLimitBurst = 1000

	logger := slog.New(slog.DiscardHandler)
	audio := storage.NewMemoryStore(time.Hour)
	tracker := jobs.NewTracker(&memStore{data: make(map[string][]byte)}, time.Hour)
	q := &fakeQueue{}

	rt := NewRouter(cfg, Deps{
		Generator: gen,
		Publisher: publish.NewPublisher(audio, "", logger),
		Audio:     audio,
		Jobs:      tracker,
		Queue:     q,
		Runs:      runlog.NewRecorder(nil),
		Checks:    checks,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "# metrics\n")
		}),
		Logger: logger,
	})
	return &testServer{handler: rt.Setup(), audio: audio, tracker: tracker, queue: q}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestGenerateAudiobook(t *testing.T) {
	s := newTestServer(t, stubGenerator{})

	for _, path := range []string{"/api/v1/audiobooks", "/generate-audiobook", "/api/generate", "/generate"} {
		rec := s.do(t, http.MethodPost, path, `{"topic":"volcanoes","voice":"onyx"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
		resp := decode[publish.AudiobookResponse](t, rec)
		if !resp.Success || resp.OverallStatus != "partial" || resp.Voice != "onyx" || resp.ChapterCount != 2 {
			t.Fatalf("%s: unexpected response %+v", path, resp)
		}
		if resp.Chapters[1].ErrorMessage == "" || resp.Chapters[1].AudioRef != "" {
			t.Fatalf("%s: failed chapter not reported: %+v", path, resp.Chapters[1])
		}
	}
}

func TestGeneratedAudioIsFetchable(t *testing.T) {
	s := newTestServer(t, stubGenerator{})
	resp := decode[publish.AudiobookResponse](t, s.do(t, http.MethodPost, "/api/v1/audiobooks", `{"topic":"volcanoes"}`))

	rec := s.do(t, http.MethodGet, resp.Chapters[0].AudioRef, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "audio/mpeg" || rec.Body.String() != "ID3-audio" {
		t.Fatalf("unexpected audio response %q %q", rec.Header().Get("Content-Type"), rec.Body.String())
	}

	if rec := s.do(t, http.MethodGet, "/api/v1/audio/does-not-exist", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown audio, got %d", rec.Code)
	}
}

func TestGenerateErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   string
		status int
		kind   string
	}{
		{"malformed body", nil, `{"topic":`, http.StatusBadRequest, "invalid_request"},
		{"invalid topic", &audiobook.PipelineError{Kind: audiobook.ErrInvalidTopic, Message: "topic must not be empty"}, `{"topic":"  "}`, http.StatusBadRequest, "invalid_topic"},
		{"script failure", &audiobook.PipelineError{Kind: audiobook.ErrScriptGenerationFailed, Message: "text generation failed"}, `{"topic":"x"}`, http.StatusBadGateway, "script_generation_failed"},
		{"empty script", &audiobook.PipelineError{Kind: audiobook.ErrEmptyScript, Message: "empty"}, `{"topic":"x"}`, http.StatusBadGateway, "empty_script"},
		{"unexpected", errors.New("boom"), `{"topic":"x"}`, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, stubGenerator{err: tc.err})
			rec := s.do(t, http.MethodPost, "/api/v1/audiobooks", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			resp := decode[publish.ErrorResponse](t, rec)
			if resp.Success || resp.Error != tc.kind {
				t.Fatalf("unexpected error body %+v", resp)
			}
		})
	}
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t, stubGenerator{})

	rec := s.do(t, http.MethodPost, "/api/v1/audiobooks/jobs", `{"topic":" volcanoes ","voice":"onyx"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[map[string]string](t, rec)
	if created["status"] != "queued" || created["jobId"] == "" {
		t.Fatalf("unexpected create response %v", created)
	}
	if len(s.queue.payloads) != 1 || s.queue.payloads[0].Topic != "volcanoes" || s.queue.payloads[0].JobID != created["jobId"] {
		t.Fatalf("unexpected enqueued payloads %+v", s.queue.payloads)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/audiobooks/jobs/"+created["jobId"], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	job := decode[jobs.Status](t, rec)
	if job.State != jobs.StateQueued || job.Voice != "onyx" {
		t.Fatalf("unexpected job %+v", job)
	}

	if rec := s.do(t, http.MethodGet, "/api/v1/audiobooks/jobs/unknown", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestJobCreateValidationAndQueueFailure(t *testing.T) {
	s := newTestServer(t, stubGenerator{})
	if rec := s.do(t, http.MethodPost, "/api/v1/audiobooks/jobs", `{"topic":"   "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank topic, got %d", rec.Code)
	}
	long := `{"topic":"` + strings.Repeat("a", 501) + `"}`
	if rec := s.do(t, http.MethodPost, "/api/v1/audiobooks/jobs", long); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for long topic, got %d", rec.Code)
	}

	s.queue.err = errors.New("redis down")
	rec := s.do(t, http.MethodPost, "/api/v1/audiobooks/jobs", `{"topic":"volcanoes"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRunsWithoutDatabase(t *testing.T) {
	s := newTestServer(t, stubGenerator{})
	if rec := s.do(t, http.MethodGet, "/api/v1/runs", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/runs?limit=zero", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, stubGenerator{},
		handlers.Check{Name: "redis", Ping: func(context.Context) error { return nil }},
		handlers.Check{Name: "database", Ping: func(context.Context) error { return errors.New("refused") }},
	)

	if rec := s.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readyz 503, got %d", rec.Code)
	}
	body := decode[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, rec)
	if body.Status != "unhealthy" || body.Checks["redis"] != "ok" || !strings.HasPrefix(body.Checks["database"], "unhealthy") {
		t.Fatalf("unexpected readiness body %+v", body)
	}

	if rec := s.do(t, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# metrics") {
		t.Fatalf("unexpected metrics response %d %q", rec.Code, rec.Body.String())
	}
}
