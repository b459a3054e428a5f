// Package whisper transcribes audio through an OpenAI-compatible
// transcription endpoint.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/voicefx-service/internal/speech"
)

// DefaultURL is the hosted transcription endpoint.
const DefaultURL = "https://api.openai.com/v1/audio/transcriptions"

const (
	defaultModel  = "whisper-1"
	serviceName   = "whisper"
	formatJSON    = "json"
	uploadBase    = "audio."
	defaultFormat = "wav"
)

// HTTP headers.
const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	bearerPrefix        = "Bearer "
)

// Form field names.
const (
	formFieldFile           = "file"
	formFieldModel          = "model"
	formFieldLanguage       = "language"
	formFieldResponseFormat = "response_format"
)

// Error messages.
const (
	errFmtWriteField = "failed to write %s field: %w"
	errFmtWriteFile  = "failed to write audio part: %w"
)

// Response is the transcription payload.
type Response struct {
	Text string `json:"text"`
}

// Client provides Whisper transcription.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

var _ speech.Transcriber = (*Client)(nil)

// NewClient builds a client. An empty url selects DefaultURL and an empty
// model selects whisper-1.
func NewClient(url, apiKey, model string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}

	if model == "" {
		model = defaultModel
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		baseURL:    url,
		model:      model,
	}
}

// LanguageCode reduces a locale such as "vi-VN" to the ISO 639-1 code the
// transcription API expects.
func LanguageCode(locale string) string {
	code, _, _ := strings.Cut(strings.TrimSpace(locale), "-")

	return strings.ToLower(code)
}

// Transcribe uploads audio and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, audio speech.Audio, language string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY is not set", speech.ErrNotConfigured)
	}

	if len(audio.Data) == 0 {
		return "", fmt.Errorf("%w: audio is empty", speech.ErrInvalidRequest)
	}

	body, contentType, err := c.form(audio, LanguageCode(language))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create transcription request: %w", err)
	}

	req.Header.Set(headerAuthorization, bearerPrefix+c.apiKey)
	req.Header.Set(headerContentType, contentType)

	resp, err := speech.Send(c.httpClient, req, serviceName)
	if err != nil {
		return "", err
	}

	var out Response

	err = speech.DecodeJSON(resp, serviceName, &out)
	if err != nil {
		return "", err
	}

	return out.Text, nil
}

func (c *Client) form(audio speech.Audio, language string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	ext := strings.TrimPrefix(strings.ToLower(audio.Extension), ".")
	if ext == "" {
		ext = defaultFormat
	}

	part, err := writer.CreateFormFile(formFieldFile, uploadBase+ext)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtWriteFile, err)
	}

	_, err = part.Write(audio.Data)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtWriteFile, err)
	}

	fields := [][2]string{{formFieldModel, c.model}, {formFieldResponseFormat, formatJSON}}
	if language != "" {
		fields = append(fields, [2]string{formFieldLanguage, language})
	}

	for _, f := range fields {
		err = writer.WriteField(f[0], f[1])
		if err != nil {
			return nil, "", fmt.Errorf(errFmtWriteField, f[0], err)
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
