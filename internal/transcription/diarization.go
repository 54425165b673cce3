package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

const (
	DefaultAssemblyAIURL   = "https://api.assemblyai.com/v2"
	defaultPollInterval    = 3 * time.Second
	defaultMaxPollAttempts = 120
)

// AssemblyAIDiarizer uploads a recording to AssemblyAI with speaker labels
// enabled and polls until the transcript is ready.
type AssemblyAIDiarizer struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

// NewAssemblyAIDiarizer creates a diarizer. Zero poll values pick the defaults.
func NewAssemblyAIDiarizer(apiKey, baseURL string, pollInterval time.Duration, maxAttempts int) *AssemblyAIDiarizer {
	if baseURL == "" {
		baseURL = DefaultAssemblyAIURL
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxPollAttempts
	}
	return &AssemblyAIDiarizer{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 5 * time.Minute},
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

type assemblyTranscript struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Text       *string `json:"text"`
	Error      *string `json:"error"`
	Utterances []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
		Start   int64  `json:"start"`
		End     int64  `json:"end"`
	} `json:"utterances"`
}

// Diarize runs upload, transcript creation and polling
func (d *AssemblyAIDiarizer) Diarize(ctx context.Context, wav []byte) ([]types.Utterance, error) {
	uploadURL, err := d.upload(ctx, wav)
	if err != nil {
		return nil, err
	}
	id, err := d.createTranscript(ctx, uploadURL)
	if err != nil {
		return nil, err
	}
	logging.Info(logging.CategoryTranscribe, "assemblyai transcript %s created, polling", id)

	result, err := d.poll(ctx, id)
	if err != nil {
		return nil, err
	}

	utterances := make([]types.Utterance, 0, len(result.Utterances))
	for _, u := range result.Utterances {
		utterances = append(utterances, types.Utterance{
			SpeakerLabel: u.Speaker,
			Text:         u.Text,
			StartMs:      u.Start,
			EndMs:        u.End,
		})
	}
	return utterances, nil
}

func (d *AssemblyAIDiarizer) upload(ctx context.Context, wav []byte) (string, error) {
	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := d.do(ctx, http.MethodPost, "/upload", "application/octet-stream", bytes.NewReader(wav), &out); err != nil {
		return "", fmt.Errorf("assemblyai upload failed: %w", err)
	}
	return out.UploadURL, nil
}

func (d *AssemblyAIDiarizer) createTranscript(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"audio_url":      audioURL,
		"speaker_labels": true,
	})
	if err != nil {
		return "", err
	}
	var out assemblyTranscript
	if err := d.do(ctx, http.MethodPost, "/transcript", "application/json", bytes.NewReader(body), &out); err != nil {
		return "", fmt.Errorf("assemblyai create transcript failed: %w", err)
	}
	return out.ID, nil
}

func (d *AssemblyAIDiarizer) poll(ctx context.Context, id string) (*assemblyTranscript, error) {
	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		var out assemblyTranscript
		if err := d.do(ctx, http.MethodGet, "/transcript/"+id, "", nil, &out); err != nil {
			return nil, fmt.Errorf("assemblyai poll failed: %w", err)
		}

		switch out.Status {
		case "completed":
			return &out, nil
		case "error":
			msg := "unknown"
			if out.Error != nil {
				msg = *out.Error
			}
			return nil, fmt.Errorf("assemblyai transcription error: %s", msg)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.pollInterval):
		}
	}
	return nil, fmt.Errorf("assemblyai transcription timed out after %d polls", d.maxAttempts)
}

func (d *AssemblyAIDiarizer) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", d.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
