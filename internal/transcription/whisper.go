package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GroqBaseURL   = "https://api.groq.com/openai/v1"

	openAIModel = "whisper-1"
	groqModel   = "whisper-large-v3"

	maxTranscribeAttempts = 3
)

// apiError is a non-200 answer from the transcription endpoint
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether another attempt could succeed. Transport errors,
// rate limits and server errors are retried; other 4xx answers are final.
func retryable(err error) bool {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return true
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
}

// WhisperTranscriber calls an OpenAI-compatible /audio/transcriptions endpoint.
// OpenAI and Groq both speak this API.
type WhisperTranscriber struct {
	apiKey   string
	baseURL  string
	model    string
	format   string
	language string
	client   *http.Client
	backoff  time.Duration
}

// WhisperOptions configures a WhisperTranscriber
type WhisperOptions struct {
	Provider string // openai or groq
	APIKey   string
	BaseURL  string
	Model    string
	Format   string
	Language string
}

// NewWhisperTranscriber creates a transcriber for the given provider
func NewWhisperTranscriber(opts WhisperOptions) (*WhisperTranscriber, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s API key not set", opts.Provider)
	}
	if !ValidateFormat(opts.Format) {
		return nil, fmt.Errorf("unsupported upload format %q", opts.Format)
	}

	baseURL, model := OpenAIBaseURL, openAIModel
	if opts.Provider == "groq" {
		baseURL, model = GroqBaseURL, groqModel
	}
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	if opts.Model != "" {
		model = opts.Model
	}

	logging.Info(logging.CategoryTranscribe, "using %s transcription (model %s)", opts.Provider, model)
	return &WhisperTranscriber{
		apiKey:   opts.APIKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		format:   opts.Format,
		language: opts.Language,
		client:   &http.Client{Timeout: 10 * time.Minute},
		backoff:  time.Second,
	}, nil
}

// Transcribe uploads the samples and returns the recognized text
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate uint32) (string, error) {
	data, format, err := EncodeUpload(samples, sampleRate, wt.format)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= maxTranscribeAttempts; attempt++ {
		text, err := wt.request(ctx, data, format)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		logging.Warn(logging.CategoryTranscribe, "transcription attempt %d/%d failed: %v", attempt, maxTranscribeAttempts, err)
		if !retryable(err) {
			return "", fmt.Errorf("transcription failed: %w", err)
		}
		if attempt == maxTranscribeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * wt.backoff):
		}
	}
	return "", fmt.Errorf("transcription failed after %d attempts: %w", maxTranscribeAttempts, lastErr)
}

func (wt *WhisperTranscriber) request(ctx context.Context, data []byte, format string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	writer.WriteField("model", wt.model)
	writer.WriteField("response_format", "json")
	if wt.language != "" {
		writer.WriteField("language", wt.language)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wt.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+wt.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := wt.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &apiError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("response parse error: %w", err)
	}
	return out.Text, nil
}
