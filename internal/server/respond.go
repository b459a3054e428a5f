package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/book-expert/voicefx-service/internal/codec"
	"github.com/book-expert/voicefx-service/internal/dsp"
	"github.com/book-expert/voicefx-service/internal/effects"
	"github.com/book-expert/voicefx-service/internal/objectstore"
	"github.com/book-expert/voicefx-service/internal/processor"
	"github.com/book-expert/voicefx-service/internal/speech"
)

var (
	errBadRequest   = errors.New("bad request")
	errTooLarge     = errors.New("upload too large")
	errUnavailable  = errors.New("service unavailable")
	errMissingField = errors.New("missing required field")
)

const (
	contentTypeJSON = "application/json"
	multipartMemory = 32 << 20

	msgInternal = "internal server error"
)

type errorResponse struct {
	Error string `json:"error"`
}

// inputErrors are caller mistakes. They are checked before ErrProcessing so a
// pipeline that fails on a bad recording still answers 400.
var inputErrors = []error{
	effects.ErrUnknownEffect,
	effects.ErrUnknownFilter,
	effects.ErrInvalidParams,
	codec.ErrUnsupportedFormat,
	codec.ErrCorrupt,
	dsp.ErrInvalidSpeed,
	dsp.ErrCutoffOutOfRange,
	speech.ErrInvalidRequest,
	objectstore.ErrInvalidKey,
	errBadRequest,
	errMissingField,
}

func statusFor(err error) int {
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}

	switch {
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, objectstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, speech.ErrNotConfigured), errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, speech.ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor keeps storage paths and internals out of 500 responses.
func messageFor(status int, err error) string {
	switch {
	case status == http.StatusNotFound:
		return "File not found"
	case status != http.StatusInternalServerError:
		return err.Error()
	case errors.Is(err, processor.ErrProcessing):
		return processor.ErrProcessing.Error()
	default:
		return msgInternal
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		s.log.Warn("%s %s: %v", r.Method, r.URL.Path, err)
	}

	writeJSON(w, status, errorResponse{Error: messageFor(status, err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// upload is one file part of a multipart request.
type upload struct {
	filename  string
	extension string
	data      []byte
}

// parseMultipart reads the form under the configured size limit.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())

	err := r.ParseMultipartForm(multipartMemory)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d MB", errTooLarge, s.cfg.MaxUploadMB)
		}

		return fmt.Errorf("%w: %w", errBadRequest, err)
	}

	return nil
}

func formFiles(r *http.Request, fields ...string) ([]upload, error) {
	var uploads []upload

	for _, field := range fields {
		for _, header := range r.MultipartForm.File[field] {
			f, err := header.Open()
			if err != nil {
				return nil, fmt.Errorf("%w: opening %s: %w", errBadRequest, field, err)
			}

			data, err := io.ReadAll(f)
			_ = f.Close()

			if err != nil {
				return nil, fmt.Errorf("%w: reading %s: %w", errBadRequest, field, err)
			}

			uploads = append(uploads, upload{
				filename:  header.Filename,
				extension: codec.ExtensionOf(header.Filename),
				data:      data,
			})
		}
	}

	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: %s", errMissingField, strings.Join(fields, " or "))
	}

	return uploads, nil
}

func formFile(r *http.Request, field string) (upload, error) {
	uploads, err := formFiles(r, field)
	if err != nil {
		return upload{}, err
	}

	return uploads[0], nil
}

// fields reads a JSON object or a form into one lookup, so text endpoints
// accept either encoding.
func (s *Server) fields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != contentTypeJSON {
		if strings.HasPrefix(mediaType, "multipart/") {
			err := s.parseMultipart(w, r)
			if err != nil {
				return nil, err
			}
		} else {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())

			err := r.ParseForm()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errBadRequest, err)
			}
		}

		out := make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			out[key] = r.PostForm.Get(key)
		}

		return out, nil
	}

	var raw map[string]any

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes()))
	decoder.UseNumber()

	err := decoder.Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}

	out := make(map[string]string, len(raw))

	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			out[key] = v
		case json.Number:
			out[key] = v.String()
		case bool:
			out[key] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("%w: field %q must be a string, number or boolean", errBadRequest, key)
		}
	}

	return out, nil
}

func floatField(values map[string]string, key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(values[key])
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", errBadRequest, key, raw)
	}

	return v, nil
}

func intField(values map[string]string, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(values[key])
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", errBadRequest, key, raw)
	}

	return v, nil
}

func boolField(values map[string]string, key string) (bool, error) {
	raw := strings.TrimSpace(values[key])
	switch strings.ToLower(raw) {
	case "", "0", "false", "off", "no":
		return false, nil
	case "1", "true", "on", "yes":
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", errBadRequest, key, raw)
	}
}

func stringField(values map[string]string, key, fallback string) string {
	v := strings.TrimSpace(values[key])
	if v == "" {
		return fallback
	}

	return v
}

func formValues(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.MultipartForm.Value))
	for key, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			out[key] = vs[0]
		}
	}

	return out
}
