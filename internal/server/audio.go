package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/book-expert/voicefx-service/internal/core"
	"github.com/book-expert/voicefx-service/internal/effects"
	"github.com/go-chi/chi/v5"
)

const (
	filesPrefix = "/files/"
	rawPrefix   = "/raw/"
)

var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
	".png":  "image/png",
}

type healthResponse struct {
	Status string `json:"status"`
}

type catalogueResponse struct {
	Effects []string             `json:"effects"`
	Filters []effects.FilterType `json:"filters"`
	Formats []string             `json:"formats"`
}

type processResponse struct {
	AudioURL    string      `json:"audio_url"`
	WaveformURL string      `json:"waveform_url,omitempty"`
	RawAudioURL string      `json:"raw_audio_url,omitempty"`
	Report      core.Report `json:"report"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleEffects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalogueResponse{
		Effects: s.catalogue.Names(),
		Filters: effects.FilterTypes(),
		Formats: s.decoders.Extensions(),
	})
}

func (s *Server) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	s.runUpload(w, r, func(ctx context.Context, file upload, values map[string]string) (core.Result, error) {
		params, err := s.effectParams(values)
		if err != nil {
			return core.Result{}, err
		}

		prefilter, err := boolField(values, "enable_filter")
		if err != nil {
			return core.Result{}, err
		}

		effect := strings.TrimSpace(values["effect"])
		if effect == "" {
			return core.Result{}, fmt.Errorf("%w: effect", errMissingField)
		}

		return s.processor.ProcessEffect(ctx, core.EffectRequest{
			Data:      file.data,
			Extension: file.extension,
			Effect:    effect,
			Params:    params,
			Prefilter: prefilter,
		})
	})
}

func (s *Server) handleFilterAudio(w http.ResponseWriter, r *http.Request) {
	s.runUpload(w, r, func(ctx context.Context, file upload, values map[string]string) (core.Result, error) {
		filterType, err := effects.ParseFilterType(stringField(values, "filter_type", string(effects.FilterNoise)))
		if err != nil {
			return core.Result{}, err
		}

		intensity, err := floatField(values, "intensity", effects.DefaultIntensity)
		if err != nil {
			return core.Result{}, err
		}

		return s.processor.Filter(ctx, core.FilterRequest{
			Data:       file.data,
			Extension:  file.extension,
			FilterType: filterType,
			Intensity:  intensity,
		})
	})
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	s.runUpload(w, r, func(ctx context.Context, file upload, values map[string]string) (core.Result, error) {
		speed, err := floatField(values, "speed", 1)
		if err != nil {
			return core.Result{}, err
		}

		return s.processor.Enhance(ctx, core.EnhanceRequest{Data: file.data, Extension: file.extension, Speed: speed})
	})
}

type uploadJob func(ctx context.Context, file upload, values map[string]string) (core.Result, error)

// runUpload parses the multipart "file" upload, runs job and answers with
// the artifact URLs.
func (s *Server) runUpload(w http.ResponseWriter, r *http.Request, job uploadJob) {
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

	res, err := job(r.Context(), file, formValues(r))
	if err != nil {
		s.fail(w, r, err)

		return
	}

	s.log.Info("%s: '%s' -> %s (%s, %s in, %s out, dominant %.0f Hz)",
		r.URL.Path, file.filename, res.AudioKey, res.Report.Pipeline,
		res.Report.InputDuration.Round(time.Millisecond), res.Report.OutputDuration.Round(time.Millisecond),
		res.Report.DominantHz)

	writeJSON(w, http.StatusOK, processResponse{
		AudioURL:    fileURL(filesPrefix, res.AudioKey),
		WaveformURL: fileURL(filesPrefix, res.WaveformKey),
		RawAudioURL: fileURL(rawPrefix, res.RawKey),
		Report:      res.Report,
	})
}

// effectParams starts from the configured defaults and applies any numeric
// form fields.
func (s *Server) effectParams(values map[string]string) (effects.Params, error) {
	p := s.defaults

	var err error

	floats := []struct {
		key string
		dst *float64
	}{
		{"delay", &p.Delay},
		{"decay", &p.Decay},
		{"cutoff", &p.Cutoff},
		{"gain", &p.Gain},
		{"speed", &p.Speed},
		{"intensity", &p.Intensity},
	}

	for _, f := range floats {
		*f.dst, err = floatField(values, f.key, *f.dst)
		if err != nil {
			return effects.Params{}, err
		}
	}

	p.Repeat, err = intField(values, "repeat", p.Repeat)
	if err != nil {
		return effects.Params{}, err
	}

	return p, nil
}

// serveFrom streams a stored artifact. Range requests are honoured.
func (s *Server) serveFrom(store core.ObjectStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			s.fail(w, r, fmt.Errorf("%w: no store configured", errUnavailable))

			return
		}

		name := chi.URLParam(r, "name")

		data, err := store.Download(r.Context(), name)
		if err != nil {
			s.fail(w, r, err)

			return
		}

		contentType, ok := contentTypes[strings.ToLower(path.Ext(name))]
		if !ok {
			contentType = "application/octet-stream"
		}

		w.Header().Set("Content-Type", contentType)
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
	}
}

func fileURL(prefix, key string) string {
	if key == "" {
		return ""
	}

	return prefix + key
}
