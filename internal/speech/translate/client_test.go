package translate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/voicefx-service/internal/speech"
	"github.com/book-expert/voicefx-service/internal/speech/translate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	var got captured

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"translatedText":"hello"}`))
	}))
	defer server.Close()

	client := translate.NewClient(server.URL, "", 5*time.Second)

	out, err := client.Translate(context.Background(), "xin chào", "", "")
	require.NoError(t, err)

	assert.Equal(t, "hello", out)
	assert.Equal(t, captured{Q: "xin chào", Source: "vi", Target: "en", Format: "text"}, got)
}

func TestTranslate_SameLanguageSkipsRemote(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"translatedText":"?"}`))
	}))
	defer server.Close()

	out, err := translate.NewClient(server.URL, "", time.Second).Translate(context.Background(), "hi", "en-US", "en-GB")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.Zero(t, calls.Load())
}

func TestTranslate_Errors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"xx is not supported"}`))
	}))
	defer server.Close()

	client := translate.NewClient(server.URL, "", time.Second)

	_, err := client.Translate(context.Background(), "", "vi", "en")
	require.ErrorIs(t, err, speech.ErrInvalidRequest)

	_, err = client.Translate(context.Background(), "chào", "vi", "xx")
	require.ErrorIs(t, err, speech.ErrRemote)
	assert.Contains(t, err.Error(), "xx is not supported")

	_, err = translate.NewClient("", "", time.Second).Translate(context.Background(), "chào", "vi", "en")
	require.ErrorIs(t, err, speech.ErrNotConfigured)
}

func TestLanguageCode(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"zh-CN": "zh",
		"zh":    "zh",
		"zh-TW": "zt",
		"en-US": "en",
		"VI":    "vi",
		"ja":    "ja",
	}

	for in, want := range cases {
		assert.Equal(t, want, translate.LanguageCode(in), in)
	}
}
