// Package speech defines the remote speech services the API fronts:
// synthesis, transcription, translation and a cloned-voice library.
// Implementations live in the sub-packages and share the error handling here.
package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrRemote wraps every failure reported by, or on the way to, a remote service.
	ErrRemote = errors.New("remote speech service failed")
	// ErrInvalidRequest marks caller input rejected before any remote call.
	ErrInvalidRequest = errors.New("invalid speech request")
	// ErrNotConfigured is returned when a service has no URL or credentials.
	ErrNotConfigured = errors.New("speech service not configured")
)

const (
	errFmtRemoteStatus = "%w: %s returned %s: %s"
	errFmtTransport    = "%w: calling %s: %w"

	// maxErrorBody bounds how much of a failed response is read for the message.
	maxErrorBody = 4096
)

// Audio is an encoded clip together with its container extension.
type Audio struct {
	Data      []byte
	Extension string
}

// Voice is one entry of a voice library.
type Voice struct {
	ID       string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// SpeakRequest asks a voice library to read text with one of its voices.
// Zero values select the library defaults.
type SpeakRequest struct {
	Text            string  `json:"text"`
	VoiceID         string  `json:"voice_id"`
	ModelID         string  `json:"model_id"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Sample is one recording uploaded to clone a voice.
type Sample struct {
	Filename string
	Data     []byte
}

// CloneRequest creates a voice from recorded samples.
type CloneRequest struct {
	Name        string
	Description string
	Samples     []Sample
}

// Synthesizer turns text into speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (Audio, error)
}

// Transcriber turns speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio, language string) (string, error)
}

// Translator translates text between two languages.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// VoiceLibrary manages cloned voices and speaks with them.
type VoiceLibrary interface {
	ListVoices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, req SpeakRequest) (Audio, error)
	CloneVoice(ctx context.Context, req CloneRequest) (string, error)
	DeleteVoice(ctx context.Context, voiceID string) error
}

// RequireText rejects blank text.
func RequireText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidRequest)
	}

	return nil
}

// Send performs req and returns the response when the status is 2xx. Any
// other outcome is an ErrRemote carrying the remote message; the body is
// closed in that case.
func Send(client *http.Client, req *http.Request, service string) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errFmtTransport, ErrRemote, service, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	defer resp.Body.Close()

	return nil, statusError(service, resp)
}

// DecodeJSON decodes a successful response body into v and closes it.
func DecodeJSON(resp *http.Response, service string, v any) error {
	defer resp.Body.Close()

	err := json.NewDecoder(resp.Body).Decode(v)
	if err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", ErrRemote, service, err)
	}

	return nil
}

// ReadAudio reads a successful audio response and closes it.
func ReadAudio(resp *http.Response, service, ext string) (Audio, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("%w: reading %s audio: %w", ErrRemote, service, err)
	}

	if len(data) == 0 {
		return Audio{}, fmt.Errorf("%w: %s returned empty audio", ErrRemote, service)
	}

	return Audio{Data: data, Extension: ext}, nil
}

// errorBody covers the error shapes the supported services return:
// {"detail": "..."}, {"detail": {"message": "..."}}, {"error": "..."} and
// {"error": {"message": "..."}}.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

func statusError(service string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return fmt.Errorf(errFmtRemoteStatus, ErrRemote, service, resp.Status, remoteMessage(raw))
}

func remoteMessage(raw []byte) string {
	var body errorBody

	err := json.Unmarshal(raw, &body)
	if err == nil {
		for _, field := range []json.RawMessage{body.Detail, body.Error} {
			msg := messageOf(field)
			if msg != "" {
				return msg
			}
		}

		if body.Message != "" {
			return body.Message
		}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "no details"
	}

	return msg
}

func messageOf(field json.RawMessage) string {
	if len(field) == 0 {
		return ""
	}

	var text string

	err := json.Unmarshal(field, &text)
	if err == nil {
		return text
	}

	var nested struct {
		Message string `json:"message"`
	}

	err = json.Unmarshal(field, &nested)
	if err == nil {
		return nested.Message
	}

	return ""
}
