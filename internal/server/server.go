// Package server exposes the voice effect pipelines and the remote speech
// services over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicefx-service/internal/codec"
	"github.com/book-expert/voicefx-service/internal/config"
	"github.com/book-expert/voicefx-service/internal/core"
	"github.com/book-expert/voicefx-service/internal/effects"
	"github.com/book-expert/voicefx-service/internal/metrics"
	"github.com/book-expert/voicefx-service/internal/speech"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const shutdownTimeout = 15 * time.Second

// Options wires a Server. The speech services are optional; routes whose
// service is nil answer 503.
type Options struct {
	Config    config.ServerConfig
	Defaults  effects.Params
	Processor core.AudioProcessor
	Catalogue *effects.Catalogue
	Decoders  *codec.Registry
	Outputs   core.ObjectStore
	Raw       core.ObjectStore
	Metrics   *metrics.Collector
	Logger    *logger.Logger

	Synthesizer speech.Synthesizer
	Transcriber speech.Transcriber
	Translator  speech.Translator
	Voices      speech.VoiceLibrary
}

// Server is the HTTP surface.
type Server struct {
	cfg       config.ServerConfig
	defaults  effects.Params
	processor core.AudioProcessor
	catalogue *effects.Catalogue
	decoders  *codec.Registry
	outputs   core.ObjectStore
	raw       core.ObjectStore
	metrics   *metrics.Collector
	log       *logger.Logger

	synthesizer speech.Synthesizer
	transcriber speech.Transcriber
	translator  speech.Translator
	voices      speech.VoiceLibrary

	newID func() string
}

// New builds a Server. A zero Defaults selects effects.DefaultParams.
func New(opts Options) *Server {
	defaults := opts.Defaults
	if defaults == (effects.Params{}) {
		defaults = effects.DefaultParams()
	}

	catalogue := opts.Catalogue
	if catalogue == nil {
		catalogue = effects.NewCatalogue()
	}

	decoders := opts.Decoders
	if decoders == nil {
		decoders = codec.DefaultRegistry()
	}

	return &Server{
		cfg:         opts.Config,
		defaults:    defaults,
		processor:   opts.Processor,
		catalogue:   catalogue,
		decoders:    decoders,
		outputs:     opts.Outputs,
		raw:         opts.Raw,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		synthesizer: opts.Synthesizer,
		transcriber: opts.Transcriber,
		translator:  opts.Translator,
		voices:      opts.Voices,
		newID:       uuid.NewString,
	}
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.cfg.CORSOrigins))
	r.Use(newRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst).middleware)

	r.Get("/health", s.handleHealth)
	r.Get("/effects", s.handleEffects)

	r.Post("/process-audio", s.handleProcessAudio)
	r.Post("/filter-audio", s.handleFilterAudio)
	r.Post("/enhance", s.handleEnhance)

	r.Get("/files/{name}", s.serveFrom(s.outputs))
	r.Get("/raw/{name}", s.serveFrom(s.raw))

	r.Post("/translate", s.handleTranslate)
	r.Post("/tts", s.handleTTS)
	r.Post("/stt", s.handleSTT)

	r.Get("/voices", s.handleListVoices)
	r.Post("/tts-eleven", s.handleSpeak)
	r.Post("/clone-voice", s.handleCloneVoice)
	r.Delete("/voices/{id}", s.handleDeleteVoice)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout(),
	}

	errChan := make(chan error, 1)

	go func() {
		errChan <- srv.ListenAndServe()
	}()

	s.log.Info("HTTP server listening on %s", srv.Addr)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	err = <-errChan
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server stopped: %w", err)
	}

	return nil
}
