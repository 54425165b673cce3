package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
	"github.com/codebuildervaibhav/meeting-recorder/internal/meeting"
	"github.com/codebuildervaibhav/meeting-recorder/internal/queue"
	"github.com/codebuildervaibhav/meeting-recorder/internal/recording"
	"github.com/codebuildervaibhav/meeting-recorder/internal/summary"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

type fakeService struct {
	meetings  map[string]*types.Meeting
	segments  map[string][]types.MeetingSegment
	recording *types.Meeting
	startErr  error
	retryErr  error
	summary   *summary.Result
	lastLimit int
	lastTitle string
	renamed   [3]string
	events    chan meeting.Event
}

func newFakeService() *fakeService {
	speaker := "A"
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &fakeService{
		meetings: map[string]*types.Meeting{
			"m1": {ID: "m1", Title: "Standup", Status: types.StatusCompleted, StartedAt: started},
		},
		segments: map[string][]types.MeetingSegment{
			"m1": {{ID: "s1", MeetingID: "m1", SpeakerID: &speaker, SpeakerName: &speaker, Text: "Ship it", EndMs: 1500}},
		},
	}
}

func (f *fakeService) get(id string) (*types.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return nil, types.ErrMeetingNotFound
	}
	return m.Clone(), nil
}

func (f *fakeService) ListMeetings(ctx context.Context, limit, offset int) ([]*types.Meeting, error) {
	f.lastLimit = limit
	out := []*types.Meeting{}
	for _, m := range f.meetings {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (f *fakeService) GetMeeting(ctx context.Context, id string) (*types.Meeting, error) {
	return f.get(id)
}

func (f *fakeService) Segments(ctx context.Context, id string) ([]types.MeetingSegment, error) {
	if _, err := f.get(id); err != nil {
		return nil, err
	}
	return f.segments[id], nil
}

func (f *fakeService) UpdateTitle(ctx context.Context, id, title string) (*types.Meeting, error) {
	m, err := f.get(id)
	if err != nil {
		return nil, err
	}
	f.lastTitle = title
	m.Title = title
	return m, nil
}

func (f *fakeService) DeleteMeeting(ctx context.Context, id string) error {
	if f.recording != nil && f.recording.ID == id {
		return meeting.ErrMeetingRecording
	}
	if _, err := f.get(id); err != nil {
		return err
	}
	delete(f.meetings, id)
	return nil
}

func (f *fakeService) RenameSpeaker(ctx context.Context, id, speakerID, name string) error {
	if strings.TrimSpace(name) == "" {
		return meeting.ErrEmptySpeakerName
	}
	f.renamed = [3]string{id, speakerID, name}
	return nil
}

func (f *fakeService) RetryTranscription(ctx context.Context, id string) (*types.Meeting, error) {
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	return f.get(id)
}

func (f *fakeService) GenerateSummary(ctx context.Context, id string) (*summary.Result, error) {
	if f.summary == nil {
		return nil, meeting.ErrNoSummarizer
	}
	return f.summary, nil
}

func (f *fakeService) StartRecording(ctx context.Context, opts meeting.StartOptions) (*types.Meeting, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	if f.recording != nil {
		return nil, meeting.ErrAlreadyRecording
	}
	f.recording = &types.Meeting{ID: "rec", Title: opts.Title, Status: types.StatusRecording}
	return f.recording, nil
}

func (f *fakeService) StopRecording(ctx context.Context) (*types.Meeting, error) {
	if f.recording == nil {
		return nil, meeting.ErrNotRecording
	}
	m := f.recording
	f.recording = nil
	m.Status = types.StatusProcessing
	return m, nil
}

func (f *fakeService) Snapshot() meeting.Snapshot {
	if f.recording != nil {
		return meeting.Snapshot{ActiveMeetingID: f.recording.ID, IsRecording: true, ElapsedMs: 2000}
	}
	return meeting.Snapshot{}
}

func (f *fakeService) Recording() (string, recording.BufferStats, bool) {
	if f.recording == nil {
		return "", recording.BufferStats{}, false
	}
	return f.recording.ID, recording.BufferStats{Appended: 320}, true
}

func (f *fakeService) Subscribe() (<-chan meeting.Event, func()) {
	if f.events != nil {
		return f.events, func() {}
	}
	return make(chan meeting.Event), func() {}
}

type fixedJobs []queue.Job

func (j fixedJobs) Jobs() []queue.Job { return j }

func newTestApp(svc *fakeService) *fiber.App {
	return NewApp(Deps{
		Service: svc,
		Engine:  audio.NewFakeEngine(16000),
		Jobs:    fixedJobs{{ID: "j1", MeetingID: "m9", Status: queue.StatusProcessing}},
		Version: "test",
	})
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decodeError(t *testing.T, data []byte) (string, string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("error body is not JSON: %s", data)
	}
	return body.Error, body.Code
}

func TestHealth(t *testing.T) {
	app := newTestApp(newFakeService())
	resp, data := doRequest(t, app, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), `"status":"healthy"`) || !strings.Contains(string(data), `"version":"test"`) {
		t.Errorf("body = %s", data)
	}
}

func TestListMeetings(t *testing.T) {
	svc := newFakeService()
	app := newTestApp(svc)

	resp, data := doRequest(t, app, http.MethodGet, "/meetings?limit=10", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body %s", resp.StatusCode, data)
	}
	if svc.lastLimit != 10 {
		t.Errorf("limit passed = %d, want 10", svc.lastLimit)
	}
	var body struct {
		Meetings []types.Meeting `json:"meetings"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Meetings) != 1 || body.Meetings[0].ID != "m1" {
		t.Errorf("meetings = %+v", body.Meetings)
	}

	for _, q := range []string{"limit=0", "limit=501", "offset=-1"} {
		resp, data := doRequest(t, app, http.MethodGet, "/meetings?"+q, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, resp.StatusCode)
		}
		if _, code := decodeError(t, data); code != "ERR_INVALID_REQUEST" {
			t.Errorf("%s: code = %s", q, code)
		}
	}
}

func TestGetMeetingNotFound(t *testing.T) {
	app := newTestApp(newFakeService())
	resp, data := doRequest(t, app, http.MethodGet, "/meetings/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, code := decodeError(t, data); code != "ERR_NOT_FOUND" {
		t.Errorf("code = %s", code)
	}
}

func TestSegmentsAndTranscript(t *testing.T) {
	app := newTestApp(newFakeService())

	resp, data := doRequest(t, app, http.MethodGet, "/meetings/m1/segments", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), "Ship it") {
		t.Errorf("segments: %d %s", resp.StatusCode, data)
	}

	resp, data = doRequest(t, app, http.MethodGet, "/meetings/m1/transcript", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transcript status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(string(data), "Standup") || !strings.Contains(string(data), "Ship it") {
		t.Errorf("transcript:\n%s", data)
	}
}

func TestUpdateTitle(t *testing.T) {
	svc := newFakeService()
	app := newTestApp(svc)

	resp, _ := doRequest(t, app, http.MethodPatch, "/meetings/m1", `{"title":"Retro"}`)
	if resp.StatusCode != http.StatusOK || svc.lastTitle != "Retro" {
		t.Errorf("status %d title %q", resp.StatusCode, svc.lastTitle)
	}

	resp, _ = doRequest(t, app, http.MethodPatch, "/meetings/m1", `{"title":"  "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank title status = %d", resp.StatusCode)
	}
}

func TestRenameSpeaker(t *testing.T) {
	svc := newFakeService()
	app := newTestApp(svc)

	resp, data := doRequest(t, app, http.MethodPost, "/meetings/m1/speakers/A", `{"name":"Alice"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %s", resp.StatusCode, data)
	}
	if svc.renamed != [3]string{"m1", "A", "Alice"} {
		t.Errorf("renamed = %v", svc.renamed)
	}

	resp, data = doRequest(t, app, http.MethodPost, "/meetings/m1/speakers/A", `{"name":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty name status = %d", resp.StatusCode)
	}
	if _, code := decodeError(t, data); code != "ERR_INVALID_REQUEST" {
		t.Errorf("code = %s", code)
	}
}

func TestRecordingLifecycle(t *testing.T) {
	svc := newFakeService()
	app := newTestApp(svc)

	resp, data := doRequest(t, app, http.MethodPost, "/recording/stop", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("stop while idle = %d", resp.StatusCode)
	}
	if _, code := decodeError(t, data); code != "ERR_NOT_RECORDING" {
		t.Errorf("code = %s", code)
	}

	resp, data = doRequest(t, app, http.MethodPost, "/recording/start", `{"title":"Planning"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start = %d %s", resp.StatusCode, data)
	}
	if svc.recording == nil || svc.recording.Title != "Planning" {
		t.Errorf("recording = %+v", svc.recording)
	}

	resp, _ = doRequest(t, app, http.MethodPost, "/recording/start", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start = %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, app, http.MethodDelete, "/meetings/rec", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("delete while recording = %d", resp.StatusCode)
	}

	resp, data = doRequest(t, app, http.MethodGet, "/recording", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var status struct {
		IsRecording bool                  `json:"isRecording"`
		ElapsedMs   int64                 `json:"elapsedMs"`
		Buffer      recording.BufferStats `json:"buffer"`
		Jobs        []queue.Job           `json:"jobs"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatal(err)
	}
	if !status.IsRecording || status.ElapsedMs != 2000 || status.Buffer.Appended != 320 || len(status.Jobs) != 1 {
		t.Errorf("status = %+v", status)
	}

	resp, data = doRequest(t, app, http.MethodPost, "/recording/stop", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), types.StatusProcessing) {
		t.Errorf("stop = %d %s", resp.StatusCode, data)
	}
}

func TestDeleteMeeting(t *testing.T) {
	svc := newFakeService()
	app := newTestApp(svc)

	resp, _ := doRequest(t, app, http.MethodDelete, "/meetings/m1", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete = %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, app, http.MethodDelete, "/meetings/m1", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete = %d", resp.StatusCode)
	}
}

func TestRetryAndSummaryErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		setup  func(*fakeService)
		status int
		code   string
	}{
		{"retry queued", "/meetings/m1/retry", func(*fakeService) {}, http.StatusAccepted, ""},
		{"retry invalid", "/meetings/m1/retry", func(f *fakeService) {
			f.retryErr = fmt.Errorf("cannot retry: %w", types.ErrInvalidTransition)
		}, http.StatusConflict, "ERR_INVALID_STATE"},
		{"retry busy", "/meetings/m1/retry", func(f *fakeService) {
			f.retryErr = meeting.ErrAlreadyProcessing
		}, http.StatusConflict, "ERR_PROCESSING"},
		{"retry unexpected", "/meetings/m1/retry", func(f *fakeService) {
			f.retryErr = errors.New("disk full")
		}, http.StatusInternalServerError, "ERR_INTERNAL"},
		{"summary unconfigured", "/meetings/m1/summary", func(*fakeService) {}, http.StatusBadRequest, "ERR_NOT_CONFIGURED"},
		{"summary ok", "/meetings/m1/summary", func(f *fakeService) {
			f.summary = &summary.Result{
				Meeting: &types.Meeting{ID: "m1"},
				Summary: summary.Summary{Summary: "Agreed to ship"},
			}
		}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			tt.setup(svc)
			resp, data := doRequest(t, newTestApp(svc), http.MethodPost, tt.path, "")
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.status, data)
			}
			if tt.code != "" {
				if _, code := decodeError(t, data); code != tt.code {
					t.Errorf("code = %s, want %s", code, tt.code)
				}
			}
		})
	}
}

func TestDevices(t *testing.T) {
	app := newTestApp(newFakeService())
	resp, data := doRequest(t, app, http.MethodGet, "/devices", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"devices"`) {
		t.Errorf("devices = %d %s", resp.StatusCode, data)
	}
}

func TestStateStreamRequiresUpgrade(t *testing.T) {
	app := newTestApp(newFakeService())
	resp, _ := doRequest(t, app, http.MethodGet, "/ws/recording", "")
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}

func TestStateStreamFrames(t *testing.T) {
	svc := newFakeService()
	svc.recording = &types.Meeting{ID: "live", Status: types.StatusRecording}
	svc.events = make(chan meeting.Event, 1)
	app := newTestApp(svc)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	defer app.Shutdown()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/recording", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first meeting.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("initial frame: %v", err)
	}
	if first.Type != meeting.EventState || first.ActiveMeetingID != "live" || !first.IsRecording || first.ElapsedMs != 2000 {
		t.Errorf("initial frame = %+v", first)
	}

	svc.events <- meeting.Event{Type: meeting.EventElapsed, ActiveMeetingID: "live", IsRecording: true, ElapsedMs: 3000}
	var next meeting.Event
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("elapsed frame: %v", err)
	}
	if next.Type != meeting.EventElapsed || next.ElapsedMs != 3000 {
		t.Errorf("elapsed frame = %+v", next)
	}
}
