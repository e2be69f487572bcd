package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/duetaudio/duet-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newClient(baseURL string, timeoutMS int) *Client {
	return NewClient(config.EngineConfig{
		BaseURL:   baseURL,
		Model:     "test-model",
		TimeoutMS: timeoutMS,
	}, newLogger())
}

func audioResponse(data string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{
						map[string]any{
							"inlineData": map[string]any{
								"mimeType": "audio/L16;rate=24000",
								"data":     data,
							},
						},
					},
				},
			},
		},
	}
}

func TestSynthesizeSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(audioResponse("cGNt"))
	}))
	defer srv.Close()

	c := newClient(srv.URL, 5000)
	audio, err := c.Synthesize(context.Background(), Request{
		Transcript: "Kore: hello\nPuck: hi",
		Speakers: []SpeakerVoice{
			{Speaker: "Kore", Voice: "Kore"},
			{Speaker: "Puck", Voice: "Puck"},
		},
		Credential: "caller-key",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio != "cGNt" {
		t.Fatalf("unexpected payload: %q", audio)
	}
	if gotPath != "/v1beta/models/test-model:generateContent" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotKey != "caller-key" {
		t.Fatalf("credential not forwarded, got %q", gotKey)
	}
	cfgs := gotBody.GenerationConfig.SpeechConfig.MultiSpeakerVoiceConfig.SpeakerVoiceConfigs
	if len(cfgs) != 2 || cfgs[0].Speaker != "Kore" || cfgs[1].VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Puck" {
		t.Fatalf("unexpected voice configs: %+v", cfgs)
	}
	if len(gotBody.GenerationConfig.ResponseModalities) != 1 || gotBody.GenerationConfig.ResponseModalities[0] != "AUDIO" {
		t.Fatalf("unexpected modalities: %v", gotBody.GenerationConfig.ResponseModalities)
	}
}

func TestSynthesizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 5000).Synthesize(context.Background(), Request{})
	if !errors.Is(err, ErrResponse) {
		t.Fatalf("expected ErrResponse, got %v", err)
	}
}

func TestSynthesizeMissingPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": "no audio here"}}}},
		}})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 5000).Synthesize(context.Background(), Request{})
	if !errors.Is(err, ErrResponse) {
		t.Fatalf("expected ErrResponse for missing payload path, got %v", err)
	}
}

func TestSynthesizeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 50).Synthesize(context.Background(), Request{})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestSynthesizeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newClient(srv.URL, 5000).Synthesize(context.Background(), Request{})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}
