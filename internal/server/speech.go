package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/book-expert/voicefx-service/internal/speech"
	"github.com/book-expert/voicefx-service/internal/speech/translate"
	"github.com/go-chi/chi/v5"
)

// Remote service labels for metrics.
const (
	svcTranslate  = "translate"
	svcTTS        = "tts"
	svcSTT        = "stt"
	svcElevenLabs = "elevenlabs"

	defaultTTSLanguage = "vi"
	defaultSTTLanguage = "vi-VN"
	ttsPrefix          = "tts_"
	elevenPrefix       = "eleven_"
)

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
	SourceLang     string `json:"source_lang"`
	TargetLang     string `json:"target_lang"`
}

type audioResponse struct {
	AudioURL string `json:"audio_url"`
}

type transcriptResponse struct {
	Text string `json:"text"`
}

type voicesResponse struct {
	Voices []speech.Voice `json:"voices"`
}

type voiceResponse struct {
	VoiceID string `json:"voice_id"`
	Status  string `json:"status,omitempty"`
}

func unavailable(service string) error {
	return fmt.Errorf("%w: %s is not configured", errUnavailable, service)
}

// remote runs one call to a speech service and records its outcome.
func (s *Server) remote(service string, call func() error) error {
	err := call()
	if s.metrics != nil {
		s.metrics.RecordRemoteCall(service, err)
	}

	return err
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if s.translator == nil {
		s.fail(w, r, unavailable(svcTranslate))

		return
	}

	values, err := s.fields(w, r)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	source := stringField(values, "source_lang", translate.DefaultSource)
	target := stringField(values, "target_lang", translate.DefaultTarget)

	var out string

	err = s.remote(svcTranslate, func() error {
		out, err = s.translator.Translate(r.Context(), values["text"], source, target)

		return err
	})
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, translateResponse{TranslatedText: out, SourceLang: source, TargetLang: target})
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.synthesizer == nil {
		s.fail(w, r, unavailable(svcTTS))

		return
	}

	values, err := s.fields(w, r)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	var audio speech.Audio

	err = s.remote(svcTTS, func() error {
		audio, err = s.synthesizer.Synthesize(r.Context(), values["text"], stringField(values, "lang", defaultTTSLanguage))

		return err
	})
	if err != nil {
		s.fail(w, r, err)

		return
	}

	s.storeAudio(w, r, ttsPrefix, audio)
}

func (s *Server) handleSTT(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		s.fail(w, r, unavailable(svcSTT))

		return
	}

	err := s.parseMultipart(w, r)
	if err != nil {
		s.fail(w, r, err)

		return
	}
	defer r.MultipartForm.RemoveAll()

	file, err := formFile(r, "file")
	if err != nil {
		s.fail(w, r, err)

		return
	}

	language := stringField(formValues(r), "language", defaultSTTLanguage)

	var text string

	err = s.remote(svcSTT, func() error {
		text, err = s.transcriber.Transcribe(r.Context(), speech.Audio{Data: file.data, Extension: file.extension}, language)

		return err
	})
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, transcriptResponse{Text: text})
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil {
		s.fail(w, r, unavailable(svcElevenLabs))

		return
	}

	var voices []speech.Voice

	err := s.remote(svcElevenLabs, func() error {
		var err error

		voices, err = s.voices.ListVoices(r.Context())

		return err
	})
	if err != nil {
		s.fail(w, r, err)

		return
	}

	if voices == nil {
		voices = []speech.Voice{}
	}

	writeJSON(w, http.StatusOK, voicesResponse{Voices: voices})
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil {
		s.fail(w, r, unavailable(svcElevenLabs))

		return
	}

	values, err := s.fields(w, r)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	req := speech.SpeakRequest{
		Text:    values["text"],
		VoiceID: values["voice_id"],
		ModelID: values["model_id"],
	}

	req.Stability, err = floatField(values, "stability", 0)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	req.SimilarityBoost, err = floatField(values, "similarity_boost", 0)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	var audio speech.Audio

	err = s.remote(svcElevenLabs, func() error {
		audio, err = s.voices.Speak(r.Context(), req)

		return err
	})
	if err != nil {
		s.fail(w, r, err)

		return
	}

	s.storeAudio(w, r, elevenPrefix, audio)
}

func (s *Server) handleCloneVoice(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil {
		s.fail(w, r, unavailable(svcElevenLabs))

		return
	}

	err := s.parseMultipart(w, r)
	if err != nil {
		s.fail(w, r, err)

		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, err := formFiles(r, "files", "file")
	if err != nil {
		s.fail(w, r, err)

		return
	}

	values := formValues(r)
	req := speech.CloneRequest{Name: values["name"], Description: values["description"]}

	for _, u := range uploads {
		req.Samples = append(req.Samples, speech.Sample{Filename: u.filename, Data: u.data})
	}

	var id string

	err = s.remote(svcElevenLabs, func() error {
		id, err = s.voices.CloneVoice(r.Context(), req)

		return err
	})
	if err != nil {
		s.fail(w, r, err)

		return
	}

	s.log.Info("Cloned voice '%s' from %d sample(s): %s", req.Name, len(req.Samples), id)
	writeJSON(w, http.StatusOK, voiceResponse{VoiceID: id, Status: "created"})
}

func (s *Server) handleDeleteVoice(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil {
		s.fail(w, r, unavailable(svcElevenLabs))

		return
	}

	id := chi.URLParam(r, "id")

	err := s.remote(svcElevenLabs, func() error { return s.voices.DeleteVoice(r.Context(), id) })
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, voiceResponse{VoiceID: id, Status: "deleted"})
}

// storeAudio saves synthesized speech next to the processed artifacts.
func (s *Server) storeAudio(w http.ResponseWriter, r *http.Request, prefix string, audio speech.Audio) {
	if s.outputs == nil {
		s.fail(w, r, fmt.Errorf("%w: no output store", errUnavailable))

		return
	}

	key := prefix + s.newID() + "." + audio.Extension

	err := s.outputs.Upload(context.WithoutCancel(r.Context()), key, audio.Data)
	if err != nil {
		s.fail(w, r, fmt.Errorf("storing speech: %w", err))

		return
	}

	writeJSON(w, http.StatusOK, audioResponse{AudioURL: filesPrefix + key})
}
