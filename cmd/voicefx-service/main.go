// main package for the voicefx-service
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicefx-service/internal/config"
	"github.com/book-expert/voicefx-service/internal/core"
	"github.com/book-expert/voicefx-service/internal/effects"
	"github.com/book-expert/voicefx-service/internal/metrics"
	"github.com/book-expert/voicefx-service/internal/objectstore"
	"github.com/book-expert/voicefx-service/internal/processor"
	"github.com/book-expert/voicefx-service/internal/server"
	"github.com/book-expert/voicefx-service/internal/speech/elevenlabs"
	"github.com/book-expert/voicefx-service/internal/speech/translate"
	"github.com/book-expert/voicefx-service/internal/speech/tts"
	"github.com/book-expert/voicefx-service/internal/speech/whisper"
	"github.com/book-expert/voicefx-service/internal/worker"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

const (
	bootstrapLogFile = "voicefx-service-bootstrap.log"
	serviceLogFile   = "voicefx-service.log"
	envFile          = ".env"
)

func setupLogger(logPath, file string) (*logger.Logger, error) {
	log, err := logger.New(logPath, file)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

// loadConfig reads -config when given, otherwise the project configuration.
func loadConfig(path string, log *logger.Logger) (*config.Config, error) {
	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Ignoring unreadable %s: %v", envFile, err)
	}

	var cfg *config.Config
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(log)
	}

	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

type app struct {
	cfg       *config.Config
	log       *logger.Logger
	metrics   *metrics.Collector
	catalogue *effects.Catalogue
}

func (a *app) newProcessor(outputs, raw core.ObjectStore) *processor.Processor {
	return processor.New(processor.Options{
		Catalogue:     a.catalogue,
		Outputs:       outputs,
		Raw:           raw,
		Metrics:       a.metrics,
		Logger:        a.log,
		MaxConcurrent: a.cfg.Processing.MaxConcurrent,
	})
}

func (a *app) newServer() (*server.Server, error) {
	outputs, err := objectstore.NewFS(a.cfg.Paths.OutputDir)
	if err != nil {
		return nil, err
	}

	raw, err := objectstore.NewFS(a.cfg.Paths.RawDir)
	if err != nil {
		return nil, err
	}

	sc := a.cfg.Speech

	defaults := effects.DefaultParams()
	defaults.Delay = a.cfg.Processing.DefaultDelaySeconds
	defaults.Repeat = a.cfg.Processing.DefaultRepeat

	return server.New(server.Options{
		Config:      a.cfg.Server,
		Defaults:    defaults,
		Processor:   a.newProcessor(outputs, raw),
		Catalogue:   a.catalogue,
		Outputs:     outputs,
		Raw:         raw,
		Metrics:     a.metrics,
		Logger:      a.log,
		Synthesizer: tts.NewClient(sc.TTSURL, sc.Timeout()),
		Transcriber: whisper.NewClient(sc.WhisperURL, sc.OpenAIAPIKey, sc.WhisperModel, sc.Timeout()),
		Translator:  translate.NewClient(sc.TranslateURL, sc.TranslateAPIKey, sc.Timeout()),
		Voices: elevenlabs.NewClient(sc.ElevenLabsURL, sc.ElevenLabsAPIKey,
			sc.ElevenLabsDefaultVoice, sc.ElevenLabsModel, sc.Timeout()),
	}), nil
}

// newWorker connects to NATS and serves jobs against the JetStream bucket.
// The returned connection must be closed by the caller.
func (a *app) newWorker(ctx context.Context) (*worker.NatsWorker, *nats.Conn, error) {
	nc, err := nats.Connect(a.cfg.NATS.URL, nats.Name("voicefx-service"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", a.cfg.NATS.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := objectstore.NewNats(ctx, js, a.cfg.NATS.ObjectStoreBucket)
	if err != nil {
		nc.Close()

		return nil, nil, err
	}

	w := worker.NewNatsWorker(nc, a.cfg.NATS.JobSubject, a.cfg.NATS.QueueGroup, store, a.newProcessor(store, nil), a.log)

	return w, nc, nil
}

func run() error {
	configPath := flag.String("config", "", "Path to a TOML config file (defaults to the project configuration)")
	flag.Parse()

	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	// 2. Load configuration and secrets
	cfg, err := loadConfig(*configPath, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Initialize the final logger based on the loaded configuration
	log, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	preset := effects.PresetV2
	preset.PrefilterReduce = cfg.Processing.PrefilterReduce

	a := &app{
		cfg:       cfg,
		log:       log,
		metrics:   metrics.NewCollector(),
		catalogue: effects.NewCatalogue(effects.WithPreset(preset)),
	}

	srv, err := a.newServer()
	if err != nil {
		return fmt.Errorf("failed to build HTTP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return srv.ListenAndServe(ctx) })

	if cfg.NATS.Enabled {
		w, nc, err := a.newWorker(ctx)
		if err != nil {
			stop()
			_ = group.Wait()

			return err
		}
		defer nc.Close()

		group.Go(func() error { return w.Run(ctx) })
	}

	log.System("voicefx-service started: %d effects, NATS worker enabled: %t", len(a.catalogue.Names()), cfg.NATS.Enabled)

	err = group.Wait()
	if err != nil {
		log.Error("Service stopped with error: %v", err)

		return err
	}

	log.System("voicefx-service stopped")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
