package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

func newTestDB(t *testing.T) *MeetingDB {
	t.Helper()
	db, err := NewMeetingDB(filepath.Join(t.TempDir(), "meetings.db"))
	if err != nil {
		t.Fatalf("NewMeetingDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newMeeting(id string, started time.Time) *types.Meeting {
	return &types.Meeting{
		ID:        id,
		Title:     "Meeting " + id,
		StartedAt: started,
		Status:    types.StatusRecording,
		CreatedAt: started,
		UpdatedAt: started,
	}
}

func seg(id, meetingID, speaker string, start, end int64) types.MeetingSegment {
	s := types.MeetingSegment{ID: id, MeetingID: meetingID, Text: "text " + id, StartMs: start, EndMs: end, CreatedAt: time.Now()}
	if speaker != "" {
		s.SpeakerID = types.StringPtr(speaker)
		s.SpeakerName = types.StringPtr(speaker)
	}
	return s
}

func TestCreateGetUpdateMeeting(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)

	m := newMeeting("m1", start)
	if err := db.CreateMeeting(ctx, m); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	got, err := db.GetMeeting(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if !got.StartedAt.Equal(start) || got.Status != types.StatusRecording || got.DurationMs != nil || got.AudioPath != nil {
		t.Fatalf("unexpected meeting: %+v", got)
	}

	ended := start.Add(time.Minute)
	d := int64(60000)
	got.EndedAt = &ended
	got.DurationMs = &d
	got.AudioPath = types.StringPtr("/tmp/m1.wav")
	got.Status = types.StatusProcessing
	if err := db.UpdateMeeting(ctx, got); err != nil {
		t.Fatalf("UpdateMeeting: %v", err)
	}

	again, err := db.GetMeeting(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if again.Status != types.StatusProcessing || *again.DurationMs != 60000 || *again.AudioPath != "/tmp/m1.wav" || !again.EndedAt.Equal(ended) {
		t.Errorf("update not persisted: %+v", again)
	}
}

func TestGetMissingMeeting(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetMeeting(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := db.UpdateMeeting(context.Background(), newMeeting("nope", time.Now())); !errors.Is(err, ErrNotFound) {
		t.Errorf("update err = %v, want ErrNotFound", err)
	}
}

func TestUnknownStatusReadsAsFailed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := newMeeting("m1", time.Now())
	m.Status = "archived"
	if err := db.CreateMeeting(ctx, m); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMeeting(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
}

func TestListMeetingsOrderAndLimits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 205; i++ {
		// sub-second offsets check that ordering is chronological, not lexical
		started := base.Add(time.Duration(i) * 500 * time.Millisecond)
		if err := db.CreateMeeting(ctx, newMeeting(fmt.Sprintf("m%03d", i), started)); err != nil {
			t.Fatal(err)
		}
	}

	def, err := db.ListMeetings(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(def) != DefaultListLimit {
		t.Errorf("default page = %d, want %d", len(def), DefaultListLimit)
	}
	if def[0].ID != "m204" || def[1].ID != "m203" {
		t.Errorf("not newest first: %s, %s", def[0].ID, def[1].ID)
	}

	capped, err := db.ListMeetings(ctx, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(capped) != MaxListLimit {
		t.Errorf("capped page = %d, want %d", len(capped), MaxListLimit)
	}

	page, err := db.ListMeetings(ctx, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "m201" {
		t.Errorf("offset page = %v", page)
	}
}

func TestSegmentsOrderedAndBatchAtomic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.CreateMeeting(ctx, newMeeting("m1", time.Now())); err != nil {
		t.Fatal(err)
	}

	err := db.CreateSegmentsBatch(ctx, []types.MeetingSegment{
		seg("s2", "m1", "B", 500, 900),
		seg("s1", "m1", "A", 0, 500),
	})
	if err != nil {
		t.Fatalf("CreateSegmentsBatch: %v", err)
	}

	segs, err := db.ListSegments(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 2 || segs[0].ID != "s1" || segs[1].ID != "s2" {
		t.Fatalf("segments not ordered by start: %+v", segs)
	}

	// second segment references a missing meeting, so nothing is written
	err = db.CreateSegmentsBatch(ctx, []types.MeetingSegment{
		seg("s3", "m1", "A", 900, 1000),
		seg("s4", "missing", "A", 0, 1),
	})
	if err == nil {
		t.Fatal("expected foreign key failure")
	}
	segs, _ = db.ListSegments(ctx, "m1")
	if len(segs) != 2 {
		t.Errorf("partial batch applied: %d segments", len(segs))
	}
}

func TestSegmentEndBeforeStartRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.CreateMeeting(ctx, newMeeting("m1", time.Now()))
	if err := db.CreateSegmentsBatch(ctx, []types.MeetingSegment{seg("s1", "m1", "", 500, 100)}); err == nil {
		t.Error("expected error for endMs < startMs")
	}
}

func TestReplaceSegments(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.CreateMeeting(ctx, newMeeting("m1", time.Now()))
	db.CreateSegmentsBatch(ctx, []types.MeetingSegment{seg("old", "m1", "", 0, 10)})

	if err := db.ReplaceSegments(ctx, "m1", []types.MeetingSegment{seg("new", "m1", "", 0, 20)}); err != nil {
		t.Fatalf("ReplaceSegments: %v", err)
	}
	segs, _ := db.ListSegments(ctx, "m1")
	if len(segs) != 1 || segs[0].ID != "new" {
		t.Errorf("segments = %+v", segs)
	}
}

func TestRenameSpeakerOnlyTouchesMatchingSegments(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.CreateMeeting(ctx, newMeeting("m1", time.Now()))
	db.CreateMeeting(ctx, newMeeting("m2", time.Now()))
	db.CreateSegmentsBatch(ctx, []types.MeetingSegment{
		seg("a1", "m1", "A", 0, 1),
		seg("b1", "m1", "B", 1, 2),
		seg("a2", "m1", "A", 2, 3),
		seg("other", "m2", "A", 0, 1),
		seg("none", "m1", "", 3, 4),
	})

	if err := db.RenameSpeaker(ctx, "m1", "A", "Alice"); err != nil {
		t.Fatalf("RenameSpeaker: %v", err)
	}

	segs, _ := db.ListSegments(ctx, "m1")
	for _, s := range segs {
		switch s.ID {
		case "a1", "a2":
			if s.SpeakerName == nil || *s.SpeakerName != "Alice" {
				t.Errorf("%s not renamed", s.ID)
			}
		case "b1":
			if *s.SpeakerName != "B" {
				t.Errorf("b1 renamed to %q", *s.SpeakerName)
			}
		case "none":
			if s.SpeakerName != nil {
				t.Errorf("unattributed segment got a name")
			}
		}
	}
	other, _ := db.ListSegments(ctx, "m2")
	if *other[0].SpeakerName != "A" {
		t.Errorf("other meeting renamed to %q", *other[0].SpeakerName)
	}
}

func TestDeleteMeetingCascadesToOwnSegmentsOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.CreateMeeting(ctx, newMeeting("m1", time.Now()))
	db.CreateMeeting(ctx, newMeeting("m2", time.Now()))
	db.CreateSegmentsBatch(ctx, []types.MeetingSegment{seg("s1", "m1", "", 0, 1), seg("s2", "m2", "", 0, 1)})

	if err := db.DeleteMeeting(ctx, "m1"); err != nil {
		t.Fatalf("DeleteMeeting: %v", err)
	}
	if segs, _ := db.ListSegments(ctx, "m1"); len(segs) != 0 {
		t.Errorf("m1 segments survived: %d", len(segs))
	}
	if segs, _ := db.ListSegments(ctx, "m2"); len(segs) != 1 {
		t.Errorf("m2 segments = %d, want 1", len(segs))
	}
	if err := db.DeleteMeeting(ctx, "m1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestAudioPaths(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := newMeeting("m1", time.Now())
	m.AudioPath = types.StringPtr("/data/meeting-audio/m1.wav")
	db.CreateMeeting(ctx, m)
	db.CreateMeeting(ctx, newMeeting("m2", time.Now()))

	paths, err := db.AudioPaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || !paths["/data/meeting-audio/m1.wav"] {
		t.Errorf("paths = %v", paths)
	}
}
