// Command voicefx-cli uploads recordings to a running voicefx-service and
// saves the processed audio and waveform locally.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Flag names.
const (
	flagServer    = "server"
	flagInput     = "in"
	flagOutput    = "out"
	flagEffect    = "effect"
	flagFilter    = "filter"
	flagIntensity = "intensity"
	flagEnhance   = "enhance"
	flagSpeed     = "speed"
	flagPrefilter = "prefilter"
	flagHealth    = "health"
	flagList      = "list"
	flagTimeout   = "timeout"
)

// Flag descriptions.
const (
	flagServerDesc    = "Base URL of the voicefx-service"
	flagInputDesc     = "Audio file to upload"
	flagOutputDesc    = "Directory for the downloaded results"
	flagEffectDesc    = "Apply a catalogue effect"
	flagFilterDesc    = "Apply a noise filter (noise, echo, music, siren)"
	flagIntensityDesc = "Noise filter intensity, 0-100"
	flagEnhanceDesc   = "Apply voice enhancement"
	flagSpeedDesc     = "Playback speed for enhancement"
	flagPrefilterDesc = "Reduce background noise before the effect"
	flagHealthDesc    = "Check service health and exit"
	flagListDesc      = "List effects and filters and exit"
	flagTimeoutDesc   = "Request timeout"
)

const (
	defaultServer  = "http://127.0.0.1:8000"
	defaultTimeout = 2 * time.Minute
	errFmtStatus   = "%s returned %s: %s"
)

var (
	errNoOperation  = errors.New("one of --effect, --filter, --enhance, --health or --list is required")
	errManyOps      = errors.New("only one of --effect, --filter or --enhance may be given")
	errInputMissing = errors.New("--in is required for processing")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	server    string
	input     string
	output    string
	effect    string
	filter    string
	intensity float64
	enhance   bool
	speed     float64
	prefilter bool
	health    bool
	list      bool
	timeout   time.Duration
}

func parseFlags(args []string) (appFlags, error) {
	var f appFlags

	fs := flag.NewFlagSet("voicefx-cli", flag.ContinueOnError)
	fs.StringVar(&f.server, flagServer, defaultServer, flagServerDesc)
	fs.StringVar(&f.input, flagInput, "", flagInputDesc)
	fs.StringVar(&f.output, flagOutput, ".", flagOutputDesc)
	fs.StringVar(&f.effect, flagEffect, "", flagEffectDesc)
	fs.StringVar(&f.filter, flagFilter, "", flagFilterDesc)
	fs.Float64Var(&f.intensity, flagIntensity, 50, flagIntensityDesc)
	fs.BoolVar(&f.enhance, flagEnhance, false, flagEnhanceDesc)
	fs.Float64Var(&f.speed, flagSpeed, 1, flagSpeedDesc)
	fs.BoolVar(&f.prefilter, flagPrefilter, false, flagPrefilterDesc)
	fs.BoolVar(&f.health, flagHealth, false, flagHealthDesc)
	fs.BoolVar(&f.list, flagList, false, flagListDesc)
	fs.DurationVar(&f.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)

	err := fs.Parse(args)
	if err != nil {
		return appFlags{}, err
	}

	return f, f.validate()
}

func (f appFlags) validate() error {
	if f.health || f.list {
		return nil
	}

	ops := 0

	for _, set := range []bool{f.effect != "", f.filter != "", f.enhance} {
		if set {
			ops++
		}
	}

	switch {
	case ops == 0:
		return errNoOperation
	case ops > 1:
		return errManyOps
	case f.input == "":
		return errInputMissing
	}

	return nil
}

// request returns the route and form fields for the chosen operation.
func (f appFlags) request() (string, map[string]string) {
	switch {
	case f.effect != "":
		return "/process-audio", map[string]string{
			"effect":        f.effect,
			"enable_filter": strconv.FormatBool(f.prefilter),
		}
	case f.filter != "":
		return "/filter-audio", map[string]string{
			"filter_type": f.filter,
			"intensity":   strconv.FormatFloat(f.intensity, 'g', -1, 64),
		}
	default:
		return "/enhance", map[string]string{"speed": strconv.FormatFloat(f.speed, 'g', -1, 64)}
	}
}

type processResult struct {
	AudioURL    string          `json:"audio_url"`
	WaveformURL string          `json:"waveform_url"`
	RawAudioURL string          `json:"raw_audio_url"`
	Report      json.RawMessage `json:"report"`
}

type catalogue struct {
	Effects []string `json:"effects"`
	Filters []string `json:"filters"`
	Formats []string `json:"formats"`
}

type apiError struct {
	Error string `json:"error"`
}

// apiClient talks to the service HTTP API.
type apiClient struct {
	httpClient *http.Client
	baseURL    string
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body apiError

		_ = json.NewDecoder(resp.Body).Decode(&body)

		return fmt.Errorf(errFmtStatus, req.URL.Path, resp.Status, body.Error)
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}

	return nil
}

func (c *apiClient) get(ctx context.Context, route string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+route, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, out)
}

// Process uploads the file at inputPath to route with the given fields.
func (c *apiClient) Process(ctx context.Context, route, inputPath string, fields map[string]string) (processResult, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return processResult{}, fmt.Errorf("failed to read input: %w", err)
	}

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(inputPath))
	if err != nil {
		return processResult{}, fmt.Errorf("failed to create form file: %w", err)
	}

	_, err = part.Write(data)
	if err != nil {
		return processResult{}, fmt.Errorf("failed to write form file: %w", err)
	}

	for k, v := range fields {
		err = writer.WriteField(k, v)
		if err != nil {
			return processResult{}, fmt.Errorf("failed to write %s field: %w", k, err)
		}
	}

	err = writer.Close()
	if err != nil {
		return processResult{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, &buf)
	if err != nil {
		return processResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out processResult

	return out, c.do(req, &out)
}

// Download saves the artifact at url (relative to the service) into dir and
// returns the local path.
func (c *apiClient) Download(ctx context.Context, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(errFmtStatus, url, resp.Status, "download failed")
	}

	err = os.MkdirAll(dir, 0o750)
	if err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	target := filepath.Join(dir, path.Base(url))

	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}

	_, err = io.Copy(file, resp.Body)
	closeErr := file.Close()

	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}

	if closeErr != nil {
		return "", fmt.Errorf("failed to close %s: %w", target, closeErr)
	}

	return target, nil
}

func execute(ctx context.Context, f appFlags, c *apiClient, stdout io.Writer) error {
	switch {
	case f.health:
		err := c.get(ctx, "/health", nil)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(stdout, "voicefx-service is healthy")

		return nil
	case f.list:
		var cat catalogue

		err := c.get(ctx, "/effects", &cat)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(stdout, "effects: %s\nfilters: %s\nformats: %s\n",
			strings.Join(cat.Effects, ", "), strings.Join(cat.Filters, ", "), strings.Join(cat.Formats, ", "))

		return nil
	}

	route, fields := f.request()

	res, err := c.Process(ctx, route, f.input, fields)
	if err != nil {
		return err
	}

	for _, url := range []string{res.AudioURL, res.WaveformURL} {
		if url == "" {
			continue
		}

		saved, err := c.Download(ctx, url, f.output)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(stdout, "Saved: %s\n", saved)
	}

	if len(res.Report) > 0 {
		_, _ = fmt.Fprintf(stdout, "Report: %s\n", res.Report)
	}

	return nil
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	return execute(ctx, f, newAPIClient(f.server, f.timeout), os.Stdout)
}

func main() {
	err := run(os.Args[1:])
	if err != nil {
		// No service logger exists on the client side.
		log.Fatalf("Error: %v", err)
	}
}
