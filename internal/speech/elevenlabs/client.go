// Package elevenlabs is a VoiceLibrary backed by the ElevenLabs API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/voicefx-service/internal/speech"
)

// Defaults used when a request leaves them empty.
const (
	DefaultURL             = "https://api.elevenlabs.io/v1"
	DefaultVoice           = "21m00Tcm4TlvDq8ikWAM"
	DefaultModel           = "eleven_multilingual_v2"
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.75
)

const (
	serviceName = "elevenlabs"
	extMP3      = "mp3"

	pathVoices     = "/voices"
	pathAddVoice   = "/voices/add"
	pathTextSpeech = "/text-to-speech/"

	headerAPIKey      = "xi-api-key"
	headerAccept      = "Accept"
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"

	formFieldName        = "name"
	formFieldDescription = "description"
	formFieldFiles       = "files"

	descriptionPrefix = "Cloned voice: "
)

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speakBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voicesResponse struct {
	Voices []speech.Voice `json:"voices"`
}

type addVoiceResponse struct {
	VoiceID string `json:"voice_id"`
}

// Client talks to the ElevenLabs REST API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	defaultVoice string
	model        string
}

var _ speech.VoiceLibrary = (*Client)(nil)

// NewClient builds a client. Empty baseURL, voice or model select the defaults.
func NewClient(baseURL, apiKey, voice, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}

	if voice == "" {
		voice = DefaultVoice
	}

	if model == "" {
		model = DefaultModel
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		defaultVoice: voice,
		model:        model,
	}
}

// ListVoices returns every voice on the account.
func (c *Client) ListVoices(ctx context.Context) ([]speech.Voice, error) {
	req, err := c.newRequest(ctx, http.MethodGet, pathVoices, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := speech.Send(c.httpClient, req, serviceName)
	if err != nil {
		return nil, err
	}

	var out voicesResponse

	err = speech.DecodeJSON(resp, serviceName, &out)
	if err != nil {
		return nil, err
	}

	return out.Voices, nil
}

// Speak reads the text with the requested voice and returns MP3 audio.
func (c *Client) Speak(ctx context.Context, sr speech.SpeakRequest) (speech.Audio, error) {
	err := speech.RequireText(sr.Text)
	if err != nil {
		return speech.Audio{}, err
	}

	body := speakBody{
		Text:    sr.Text,
		ModelID: orDefault(sr.ModelID, c.model),
		VoiceSettings: voiceSettings{
			Stability:       orFloat(sr.Stability, DefaultStability),
			SimilarityBoost: orFloat(sr.SimilarityBoost, DefaultSimilarityBoost),
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return speech.Audio{}, fmt.Errorf("failed to marshal speak request: %w", err)
	}

	voice := orDefault(sr.VoiceID, c.defaultVoice)

	req, err := c.newRequest(ctx, http.MethodPost, pathTextSpeech+url.PathEscape(voice), bytes.NewReader(payload))
	if err != nil {
		return speech.Audio{}, err
	}

	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerAccept, contentTypeMPEG)

	resp, err := speech.Send(c.httpClient, req, serviceName)
	if err != nil {
		return speech.Audio{}, err
	}

	return speech.ReadAudio(resp, serviceName, extMP3)
}

// CloneVoice uploads samples as a new voice and returns its id.
func (c *Client) CloneVoice(ctx context.Context, cr speech.CloneRequest) (string, error) {
	name := strings.TrimSpace(cr.Name)
	if name == "" {
		return "", fmt.Errorf("%w: voice name is required", speech.ErrInvalidRequest)
	}

	if len(cr.Samples) == 0 {
		return "", fmt.Errorf("%w: at least one sample is required", speech.ErrInvalidRequest)
	}

	body, contentType, err := cloneForm(name, orDefault(cr.Description, descriptionPrefix+name), cr.Samples)
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathAddVoice, body)
	if err != nil {
		return "", err
	}

	req.Header.Set(headerContentType, contentType)

	resp, err := speech.Send(c.httpClient, req, serviceName)
	if err != nil {
		return "", err
	}

	var out addVoiceResponse

	err = speech.DecodeJSON(resp, serviceName, &out)
	if err != nil {
		return "", err
	}

	return out.VoiceID, nil
}

// DeleteVoice removes a voice from the account.
func (c *Client) DeleteVoice(ctx context.Context, voiceID string) error {
	if strings.TrimSpace(voiceID) == "" {
		return fmt.Errorf("%w: voice id is required", speech.ErrInvalidRequest)
	}

	req, err := c.newRequest(ctx, http.MethodDelete, pathVoices+"/"+url.PathEscape(voiceID), http.NoBody)
	if err != nil {
		return err
	}

	resp, err := speech.Send(c.httpClient, req, serviceName)
	if err != nil {
		return err
	}

	return resp.Body.Close()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: ELEVENLABS_API_KEY is not set", speech.ErrNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", serviceName, err)
	}

	req.Header.Set(headerAPIKey, c.apiKey)

	return req, nil
}

func cloneForm(name, description string, samples []speech.Sample) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	err := writer.WriteField(formFieldName, name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write name field: %w", err)
	}

	err = writer.WriteField(formFieldDescription, description)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write description field: %w", err)
	}

	for i, s := range samples {
		filename := s.Filename
		if filename == "" {
			filename = fmt.Sprintf("sample_%d.wav", i+1)
		}

		part, err := writer.CreateFormFile(formFieldFiles, filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create sample part: %w", err)
		}

		_, err = part.Write(s.Data)
		if err != nil {
			return nil, "", fmt.Errorf("failed to write sample part: %w", err)
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func orFloat(value, fallback float64) float64 {
	if value <= 0 {
		return fallback
	}

	return value
}
