// Package tts is the client for the standalone speech synthesis service.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/voicefx-service/internal/speech"
	"github.com/book-expert/voicefx-service/internal/speech/text"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Default values.
const (
	defaultTemperature = 0.75
	defaultLanguage    = "vi"
	serviceName        = "tts"
	extWAV             = "wav"
)

const (
	errFmtContentType = "%w: tts returned %q, expected %s"
	errFmtHealth      = "%w: tts health check returned %s"
)

// Request is the JSON body sent to the synthesis endpoint.
type Request struct {
	Text           string  `json:"text"`
	SpeakerRefPath string  `json:"speaker_ref_path,omitempty"`
	Language       string  `json:"language"`
	Temperature    float64 `json:"temperature"`
}

// Client synthesizes speech over HTTP.
type Client struct {
	httpClient *http.Client
	normalizer *text.Normalizer
	baseURL    string
}

var _ speech.Synthesizer = (*Client)(nil)

// NewClient builds a client for baseURL (scheme, host and port).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		normalizer: text.NewNormalizer(),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Synthesize normalizes the text for lang and returns the generated WAV.
func (c *Client) Synthesize(ctx context.Context, input, lang string) (speech.Audio, error) {
	if c.baseURL == "" {
		return speech.Audio{}, fmt.Errorf("%w: tts url", speech.ErrNotConfigured)
	}

	err := speech.RequireText(input)
	if err != nil {
		return speech.Audio{}, err
	}

	if lang == "" {
		lang = defaultLanguage
	}

	return c.Generate(ctx, Request{
		Text:     c.normalizer.Normalize(input, lang),
		Language: lang,
	})
}

// Generate sends req as-is, filling the temperature and language defaults.
func (c *Client) Generate(ctx context.Context, req Request) (speech.Audio, error) {
	err := speech.RequireText(req.Text)
	if err != nil {
		return speech.Audio{}, err
	}

	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}

	if req.Language == "" {
		req.Language = defaultLanguage
	}

	body, err := json.Marshal(req)
	if err != nil {
		return speech.Audio{}, fmt.Errorf("failed to marshal tts request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiGenerateSpeech, bytes.NewReader(body))
	if err != nil {
		return speech.Audio{}, fmt.Errorf("failed to create tts request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := speech.Send(c.httpClient, httpReq, serviceName)
	if err != nil {
		return speech.Audio{}, err
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get(headerContentType))
	if mediaType != contentTypeWAV {
		_ = resp.Body.Close()

		return speech.Audio{}, fmt.Errorf(errFmtContentType, speech.ErrRemote, mediaType, contentTypeWAV)
	}

	return speech.ReadAudio(resp, serviceName, extWAV)
}

// HealthCheck reports whether the synthesis service answers its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := speech.Send(c.httpClient, req, serviceName)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(errFmtHealth, speech.ErrRemote, resp.Status)
	}

	return nil
}
