package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/duetaudio/duet-core/internal/config"
)

// Client calls the speech engine's generateContent endpoint over HTTP. It is
// stateless apart from the shared http.Client and safe for concurrent use.
type Client struct {
	baseURL string
	model   string
	timeout time.Duration
	http    *http.Client
	log     *slog.Logger
}

func NewClient(cfg config.EngineConfig, log *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		http:    &http.Client{},
		log:     log.With(slog.String("component", "engine")),
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	MultiSpeakerVoiceConfig multiSpeakerVoiceConfig `json:"multiSpeakerVoiceConfig"`
}

type multiSpeakerVoiceConfig struct {
	SpeakerVoiceConfigs []speakerVoiceConfig `json:"speakerVoiceConfigs"`
}

type speakerVoiceConfig struct {
	Speaker     string      `json:"speaker"`
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Synthesize performs one engine call and returns the base64 audio payload
// found at the response's fixed nested path. Any structural deviation —
// non-2xx status, unparseable body, or a missing payload — is an ErrResponse;
// deadline expiry is ErrTimeout; everything else on the wire is ErrTransport.
func (c *Client) Synthesize(ctx context.Context, req Request) (string, error) {
	voices := make([]speakerVoiceConfig, 0, len(req.Speakers))
	for _, sv := range req.Speakers {
		voices = append(voices, speakerVoiceConfig{
			Speaker:     sv.Speaker,
			VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: sv.Voice}},
		})
	}
	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: req.Transcript}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				MultiSpeakerVoiceConfig: multiSpeakerVoiceConfig{SpeakerVoiceConfigs: voices},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrResponse, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", req.Credential)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("engine returned error status",
			slog.String("status", resp.Status),
			slog.String("body", string(snippet)))
		return "", fmt.Errorf("%w: status %s", ErrResponse, resp.Status)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrResponse, err)
	}
	return extractAudio(decoded)
}

// extractAudio pulls candidates[0].content.parts[0].inlineData.data.
func extractAudio(resp generateResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrResponse)
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].InlineData == nil || parts[0].InlineData.Data == "" {
		return "", fmt.Errorf("%w: missing audio payload", ErrResponse)
	}
	return parts[0].InlineData.Data, nil
}
