// Package translate is a Translator backed by a LibreTranslate server.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/voicefx-service/internal/speech"
)

// Default languages when a request leaves them empty.
const (
	DefaultSource = "vi"
	DefaultTarget = "en"
)

const (
	serviceName     = "translate"
	pathTranslate   = "/translate"
	formatText      = "text"
	headerType      = "Content-Type"
	contentTypeJSON = "application/json"
)

// Chinese variants keep their script; every other locale keeps its language.
var aliases = map[string]string{
	"zh":    "zh",
	"zh-cn": "zh",
	"zh-tw": "zt",
}

type request struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type response struct {
	TranslatedText string `json:"translatedText"`
}

// Client translates text.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ speech.Translator = (*Client)(nil)

// NewClient builds a client for a LibreTranslate base URL. apiKey may be empty.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// LanguageCode maps a user-facing locale ("en-US", "zh-TW") to the server's code.
func LanguageCode(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))

	code, ok := aliases[locale]
	if ok {
		return code
	}

	code, _, _ = strings.Cut(locale, "-")

	return code
}

// Translate returns text translated from source to target. Identical
// languages return the text unchanged without a remote call.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("%w: translate url", speech.ErrNotConfigured)
	}

	err := speech.RequireText(text)
	if err != nil {
		return "", err
	}

	src := LanguageCode(orDefault(source, DefaultSource))
	dst := LanguageCode(orDefault(target, DefaultTarget))

	if src == dst {
		return text, nil
	}

	payload, err := json.Marshal(request{Q: text, Source: src, Target: dst, Format: formatText, APIKey: c.apiKey})
	if err != nil {
		return "", fmt.Errorf("failed to marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathTranslate, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create translate request: %w", err)
	}

	req.Header.Set(headerType, contentTypeJSON)

	resp, err := speech.Send(c.httpClient, req, serviceName)
	if err != nil {
		return "", err
	}

	var out response

	err = speech.DecodeJSON(resp, serviceName, &out)
	if err != nil {
		return "", err
	}

	return out.TranslatedText, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}
