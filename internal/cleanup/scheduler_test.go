package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type staticRefs struct {
	paths map[string]bool
	err   error
}

func (r staticRefs) AudioPaths(ctx context.Context) (map[string]bool, error) {
	return r.paths, r.err
}

func writeFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	mod := time.Now().Add(-age)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSweepRemovesOnlyOldOrphans(t *testing.T) {
	dir := t.TempDir()
	orphan := filepath.Join(dir, "orphan.wav")
	fresh := filepath.Join(dir, "fresh.wav")
	owned := filepath.Join(dir, "owned.wav")
	other := filepath.Join(dir, "notes.txt")

	writeFile(t, orphan, 48*time.Hour)
	writeFile(t, fresh, time.Minute)
	writeFile(t, owned, 48*time.Hour)
	writeFile(t, other, 48*time.Hour)

	s := NewScheduler(dir, staticRefs{paths: map[string]bool{owned: true}}, 60, 24)
	res := s.Sweep(context.Background())

	if res.Deleted != 1 || res.Freed != 4 {
		t.Errorf("result = %+v, want 1 file of 4 bytes", res)
	}
	if exists(orphan) {
		t.Error("old orphan was not deleted")
	}
	for _, p := range []string{fresh, owned, other} {
		if !exists(p) {
			t.Errorf("%s was deleted", filepath.Base(p))
		}
	}
}

func TestSweepSkipsWhenReferencesUnavailable(t *testing.T) {
	dir := t.TempDir()
	orphan := filepath.Join(dir, "orphan.wav")
	writeFile(t, orphan, 48*time.Hour)

	s := NewScheduler(dir, staticRefs{err: errors.New("db locked")}, 60, 24)
	if res := s.Sweep(context.Background()); res.Deleted != 0 {
		t.Errorf("deleted %d files without a reference set", res.Deleted)
	}
	if !exists(orphan) {
		t.Error("file deleted while references were unavailable")
	}
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	orphan := filepath.Join(dir, "orphan.wav")
	writeFile(t, orphan, 48*time.Hour)

	s := NewScheduler(dir, staticRefs{paths: map[string]bool{}}, 60, 24)
	s.Start()
	s.Stop()
	s.Stop()

	if exists(orphan) {
		t.Error("initial sweep did not run")
	}
}
