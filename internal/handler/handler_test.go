package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skycast/skycast/internal/agent"
	"github.com/skycast/skycast/internal/handler"
	"github.com/skycast/skycast/internal/models"
	"github.com/skycast/skycast/internal/service"
	"github.com/skycast/skycast/internal/store"
)

// ─── Fakes ────────────────────────────────────────────────────────────────────

type fakeGeo struct{}

func (fakeGeo) Geocode(_ context.Context, city string) (models.GeoResult, error) {
	if strings.EqualFold(city, "paris") {
		return models.GeoResult{Name: "Paris", Country: "FR", Lat: 48.8566, Lon: 2.3522}, nil
	}
	return models.GeoResult{}, fmt.Errorf("%w: %q", service.ErrLocationNotFound, city)
}

type fakeWeather struct{}

func (fakeWeather) CurrentWeather(context.Context, models.Coordinates) (models.WeatherReport, error) {
	return models.WeatherReport{Main: "Clear", TempMin: 15, TempMax: 22}, nil
}

type fakeTranscriber struct {
	text string
	err  error
	got  string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, name string, r io.Reader) (string, error) {
	b, _ := io.ReadAll(r)
	f.got = name + ":" + string(b)
	return f.text, f.err
}

type fakeLister struct {
	docs []service.TurnDocument
	size int
}

func (f *fakeLister) Recent(_ context.Context, _ string, size int) ([]service.TurnDocument, error) {
	f.size = size
	return f.docs, nil
}

type rejectAll struct{}

func (rejectAll) Check(string) error { return errors.New("nope") }

func newSessions(opts ...agent.Option) (*handler.SessionHandler, store.SessionStore) {
	runner := agent.NewRunner(agent.NewRulesModel(), agent.NewTeam(fakeGeo{}, fakeWeather{}), opts...)
	sessions := store.NewMemorySessionStore()
	return handler.NewSessionHandler(runner, sessions, 30*time.Second), sessions
}

func newRouter(h *handler.SessionHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/sessions", h.Create)
	r.Get("/sessions/{id}", h.Get)
	r.Delete("/sessions/{id}", h.Delete)
	r.Post("/sessions/{id}/messages", h.SendMessage)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/sessions", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var s models.SessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if s.SessionID == "" || s.CurrentAgent != "Forecast Agent" {
		t.Fatalf("unexpected session %+v", s)
	}
	return s.SessionID
}

// ─── Sessions ─────────────────────────────────────────────────────────────────

func TestSendMessage_WeatherTurn(t *testing.T) {
	sh, _ := newSessions()
	h := newRouter(sh)
	id := createSession(t, h)

	rr := do(t, h, http.MethodPost, "/sessions/"+id+"/messages", `{"message":"What's the weather in Paris?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp models.TurnResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Reply, "Paris") || !strings.Contains(resp.Reply, "Clear") {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.CurrentAgent != "Forecast Agent" {
		t.Errorf("current agent = %q", resp.CurrentAgent)
	}
	if resp.Context.Forecast == nil || resp.Context.CityName != "Paris" {
		t.Errorf("context = %+v", resp.Context)
	}
	if len(resp.Events) == 0 {
		t.Error("expected turn events")
	}

	rr = do(t, h, http.MethodGet, "/sessions/"+id, "")
	var s models.SessionResponse
	json.Unmarshal(rr.Body.Bytes(), &s)
	if s.Turns != 1 {
		t.Errorf("turns = %d, want 1", s.Turns)
	}
}

func TestSendMessage_ExitRemovesSession(t *testing.T) {
	sh, sessions := newSessions()
	h := newRouter(sh)
	id := createSession(t, h)

	rr := do(t, h, http.MethodPost, "/sessions/"+id+"/messages", `{"message":"exit"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp models.TurnResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if !resp.Ended {
		t.Error("expected ended turn")
	}
	if _, err := sessions.Get(context.Background(), id); !errors.Is(err, store.ErrSessionNotFound) {
		t.Errorf("session should be removed, got %v", err)
	}
	if rr := do(t, h, http.MethodGet, "/sessions/"+id, ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 after exit, got %d", rr.Code)
	}
}

func TestSendMessage_Errors(t *testing.T) {
	sh, _ := newSessions(agent.WithValidator(rejectAll{}))
	h := newRouter(sh)
	id := createSession(t, h)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown session", "/sessions/missing/messages", `{"message":"hi"}`, http.StatusNotFound},
		{"empty message", "/sessions/" + id + "/messages", `{"message":"  "}`, http.StatusBadRequest},
		{"bad json", "/sessions/" + id + "/messages", `{"message":`, http.StatusBadRequest},
		{"rejected input", "/sessions/" + id + "/messages", `{"message":"weather in Paris"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, tc.path, tc.body)
			if rr.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
			var e models.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e.Status != "error" {
				t.Errorf("expected error envelope, got %s", rr.Body.String())
			}
		})
	}
}

func TestDeleteSession(t *testing.T) {
	sh, _ := newSessions()
	h := newRouter(sh)
	id := createSession(t, h)

	if rr := do(t, h, http.MethodDelete, "/sessions/"+id, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/sessions/"+id, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestConverse_UnknownSessionsReleaseLocks(t *testing.T) {
	sh, _ := newSessions()
	for i := 0; i < 1000; i++ {
		_, err := sh.Converse(context.Background(), fmt.Sprintf("missing-%d", i), "hello")
		if !errors.Is(err, store.ErrSessionNotFound) {
			t.Fatalf("request %d: expected ErrSessionNotFound, got %v", i, err)
		}
	}
	if n := sh.ActiveLocks(); n != 0 {
		t.Errorf("expected no session locks left, got %d", n)
	}
}

func TestConverse_ConcurrentTurnsReleaseLocks(t *testing.T) {
	sh, sessions := newSessions()
	h := newRouter(sh)
	id := createSession(t, h)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sh.Converse(context.Background(), id, "weather in Paris"); err != nil {
				t.Errorf("Converse: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := sh.ActiveLocks(); n != 0 {
		t.Errorf("expected no session locks left, got %d", n)
	}
	s, err := sessions.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if turns := s.View().Turns; turns != 8 {
		t.Errorf("expected 8 serialized turns, got %d", turns)
	}

	if rr := do(t, h, http.MethodDelete, "/sessions/"+id, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if n := sh.ActiveLocks(); n != 0 {
		t.Errorf("delete left %d session locks", n)
	}
}

// ─── Health ───────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	cases := []struct {
		name   string
		checks map[string]handler.CheckFunc
		want   int
	}{
		{"all ok", map[string]handler.CheckFunc{"openweather": ok, "sessions": ok}, http.StatusOK},
		{"disabled archive", map[string]handler.CheckFunc{"openweather": ok, "archive": nil}, http.StatusOK},
		{"store down", map[string]handler.CheckFunc{"openweather": ok, "sessions": down}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := handler.NewHealthHandler(tc.checks)
			rr := httptest.NewRecorder()
			h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rr.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rr.Code)
			}
			var resp models.HealthResponse
			json.Unmarshal(rr.Body.Bytes(), &resp)
			if resp.Checks["server"] != "ok" {
				t.Errorf("checks = %v", resp.Checks)
			}
			if _, ok := tc.checks["archive"]; ok && resp.Checks["archive"] != "disabled" {
				t.Errorf("archive = %q", resp.Checks["archive"])
			}
		})
	}
}

// ─── Transcription ────────────────────────────────────────────────────────────

func multipartBody(t *testing.T, fields map[string]string, audio []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if audio != nil {
		fw, err := mw.CreateFormFile("audio", "clip.wav")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(audio)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func transcribe(t *testing.T, h *handler.TranscribeHandler, fields map[string]string, audio []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, fields, audio)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.Transcribe(rr, req)
	return rr
}

func TestTranscribe(t *testing.T) {
	tr := &fakeTranscriber{text: "What's the weather in Paris?"}
	h := handler.NewTranscribeHandler(tr, nil, 1<<20)

	rr := transcribe(t, h, nil, []byte("RIFF"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp models.TranscriptionResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Transcript != tr.text || resp.Turn != nil {
		t.Errorf("unexpected response %+v", resp)
	}
	if tr.got != "clip.wav:RIFF" {
		t.Errorf("transcriber got %q", tr.got)
	}
}

func TestTranscribe_IntoSession(t *testing.T) {
	sh, _ := newSessions()
	id := createSession(t, newRouter(sh))
	h := handler.NewTranscribeHandler(&fakeTranscriber{text: "weather in Paris"}, sh, 1<<20)

	rr := transcribe(t, h, map[string]string{"session_id": id}, []byte("RIFF"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp models.TranscriptionResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Turn == nil || !strings.Contains(resp.Turn.Reply, "Clear") {
		t.Errorf("expected a weather turn, got %+v", resp.Turn)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	empty := &fakeTranscriber{err: fmt.Errorf("transcribe clip.wav: %w", service.ErrEmptyTranscript)}

	if rr := transcribe(t, handler.NewTranscribeHandler(empty, nil, 1<<20), nil, []byte("RIFF")); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty transcript: expected 422, got %d", rr.Code)
	}
	if rr := transcribe(t, handler.NewTranscribeHandler(empty, nil, 1<<20), nil, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("missing audio: expected 400, got %d", rr.Code)
	}
	if rr := transcribe(t, handler.NewTranscribeHandler(nil, nil, 1<<20), nil, []byte("RIFF")); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("not configured: expected 503, got %d", rr.Code)
	}
	big := bytes.Repeat([]byte("x"), 4096)
	if rr := transcribe(t, handler.NewTranscribeHandler(empty, nil, 1024), nil, big); rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized: expected 413, got %d", rr.Code)
	}
}

// ─── History ──────────────────────────────────────────────────────────────────

func TestHistory(t *testing.T) {
	lister := &fakeLister{docs: []service.TurnDocument{{ID: "t1", SessionID: "s1", Utterance: "hi"}}}
	h := handler.NewHistoryHandler(lister)
	r := chi.NewRouter()
	r.Get("/sessions/{id}/turns", h.Turns)

	rr := do(t, r, http.MethodGet, "/sessions/s1/turns?size=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp handler.TurnHistoryResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Count != 1 || resp.SessionID != "s1" || lister.size != 5 {
		t.Errorf("unexpected response %+v (size %d)", resp, lister.size)
	}

	if rr := do(t, r, http.MethodGet, "/sessions/s1/turns?size=0", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("size=0: expected 400, got %d", rr.Code)
	}

	h = handler.NewHistoryHandler(nil)
	rr = httptest.NewRecorder()
	h.Turns(rr, httptest.NewRequest(http.MethodGet, "/sessions/s1/turns", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("no archive: expected 503, got %d", rr.Code)
	}
}
