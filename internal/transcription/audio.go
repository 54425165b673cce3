package transcription

import (
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
)

// Upload formats accepted by the speech-to-text endpoints
const (
	FormatFLAC = "flac"
	FormatWAV  = "wav"
)

// EncodeUpload packs mono samples into the container sent to the provider
func EncodeUpload(samples []float32, sampleRate uint32, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "", FormatFLAC:
		data, err := audio.EncodeFLAC(samples, sampleRate)
		if err != nil {
			return nil, "", fmt.Errorf("flac encode failed: %w", err)
		}
		return data, FormatFLAC, nil
	case FormatWAV:
		return audio.EncodeWAV(samples, sampleRate), FormatWAV, nil
	default:
		return nil, "", fmt.Errorf("unsupported upload format %q", format)
	}
}

// ValidateFormat checks if an upload format is supported
func ValidateFormat(format string) bool {
	switch strings.ToLower(format) {
	case "", FormatFLAC, FormatWAV:
		return true
	}
	return false
}
