package storage

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abc-123_XYZ", "abc-123_XYZ"},
		{"../../etc/passwd", "etcpasswd"},
		{"a b/c", "abc"},
		{"", "meeting"},
		{"///", "meeting"},
		{"héllo", "hllo"},
	}
	for _, tt := range tests {
		if got := SanitizeID(tt.in); got != tt.want {
			t.Errorf("SanitizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAudioWriterRoundTrip(t *testing.T) {
	store, err := NewAudioStore(filepath.Join(t.TempDir(), "meeting-audio"))
	if err != nil {
		t.Fatal(err)
	}

	w, err := store.StartWriter("m-1", 16000)
	if err != nil {
		t.Fatalf("StartWriter: %v", err)
	}
	chunk := make([]float32, 8000)
	for i := range chunk {
		chunk[i] = 0.25
	}
	if err := w.AppendAudioChunk(chunk); err != nil {
		t.Fatal(err)
	}
	if err := w.AppendAudioChunk([]float32{float32(math.NaN()), 2, -2}); err != nil {
		t.Fatal(err)
	}

	art, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if art.FilePath != store.PathFor("m-1") {
		t.Errorf("path = %q", art.FilePath)
	}
	// 8002 samples at 16kHz
	if art.DurationMs != 500 {
		t.Errorf("duration = %d, want 500", art.DurationMs)
	}
	if _, err := w.Finalize(); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("second finalize err = %v", err)
	}
	if err := w.AppendAudioChunk(chunk); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("append after finalize err = %v", err)
	}

	samples, rate, err := store.LoadMeetingAudio("m-1")
	if err != nil {
		t.Fatalf("LoadMeetingAudio: %v", err)
	}
	if rate != 16000 || len(samples) != 8002 {
		t.Fatalf("loaded %d samples at %d", len(samples), rate)
	}
	if samples[8000] != 1 || samples[8001] != -1 {
		t.Errorf("clamping lost: %v %v", samples[8000], samples[8001])
	}

	stored, err := store.Artifact("m-1")
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	if stored != art {
		t.Errorf("Artifact = %+v, want %+v", stored, art)
	}
	if _, err := store.Artifact("missing"); err == nil {
		t.Error("Artifact of a missing recording succeeded")
	}
}

func TestAudioWriterAbortRemovesFile(t *testing.T) {
	store, _ := NewAudioStore(t.TempDir())
	w, err := store.StartWriter("m", 8000)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Abort(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Errorf("aborted file still present: %v", err)
	}
}

func TestStartWriterRejectsZeroRate(t *testing.T) {
	store, _ := NewAudioStore(t.TempDir())
	if _, err := store.StartWriter("m", 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestDeleteAudioRefusesOutsidePaths(t *testing.T) {
	root := t.TempDir()
	store, _ := NewAudioStore(filepath.Join(root, "meeting-audio"))

	outside := filepath.Join(root, "secret.wav")
	os.WriteFile(outside, []byte("x"), 0644)

	for _, p := range []string{outside, store.Dir(), filepath.Join(store.Dir(), "..", "secret.wav")} {
		if err := store.DeleteAudio(p); !errors.Is(err, ErrOutsideAudioDir) {
			t.Errorf("DeleteAudio(%q) err = %v, want ErrOutsideAudioDir", p, err)
		}
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("outside file removed: %v", err)
	}

	inside := store.PathFor("m1")
	os.WriteFile(inside, []byte("x"), 0644)
	if err := store.DeleteAudio(inside); err != nil {
		t.Fatalf("DeleteAudio inside: %v", err)
	}
	if err := store.DeleteAudio(inside); err != nil {
		t.Errorf("missing file should not error: %v", err)
	}
}
