package meeting

import (
	"context"
	"sort"
	"sync"

	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

// Event is pushed to subscribers after every state change
type Event struct {
	Type            string         `json:"type"`
	ActiveMeetingID string         `json:"activeMeetingId"`
	IsRecording     bool           `json:"isRecording"`
	IsProcessing    bool           `json:"isProcessing"`
	ElapsedMs       int64          `json:"elapsedMs"`
	Meeting         *types.Meeting `json:"meeting,omitempty"`
}

// Event types
const (
	EventState   = "state"
	EventElapsed = "elapsed"
)

// Snapshot is a copy of the application state
type Snapshot struct {
	Meetings        []*types.Meeting       `json:"meetings"`
	Segments        []types.MeetingSegment `json:"segments"`
	ActiveMeetingID string                 `json:"activeMeetingId"`
	IsRecording     bool                   `json:"isRecording"`
	IsProcessing    bool                   `json:"isProcessing"`
	ElapsedMs       int64                  `json:"elapsedMs"`
}

type data struct {
	meetingByID     map[string]*types.Meeting
	meetingIDs      []string
	segmentByID     map[string]types.MeetingSegment
	segmentIDs      []string
	activeMeetingID string
	isRecording     bool
	processing      map[string]bool
	elapsedMs       int64
}

// State holds meetings, loaded segments and recording flags in memory
type State struct {
	mu sync.RWMutex
	d  data

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewState() *State {
	return &State{
		d: data{
			meetingByID: make(map[string]*types.Meeting),
			segmentByID: make(map[string]types.MeetingSegment),
			processing:  make(map[string]bool),
		},
		subs: make(map[int]chan Event),
	}
}

// scoped is the part of the state a command may touch, captured before the
// command applies. Restoring it is the command's inverse.
type scoped struct {
	id              string
	meeting         *types.Meeting
	index           int
	segments        []types.MeetingSegment
	segmentIndex    []int
	activeMeetingID string
	isRecording     bool
	elapsedMs       int64
}

func (d *data) capture(id string) scoped {
	sc := scoped{
		id:              id,
		index:           -1,
		activeMeetingID: d.activeMeetingID,
		isRecording:     d.isRecording,
		elapsedMs:       d.elapsedMs,
	}
	if m, ok := d.meetingByID[id]; ok {
		sc.meeting = m.Clone()
		sc.index = indexOf(d.meetingIDs, id)
	}
	for i, segID := range d.segmentIDs {
		if seg, ok := d.segmentByID[segID]; ok && seg.MeetingID == id {
			sc.segments = append(sc.segments, seg.Clone())
			sc.segmentIndex = append(sc.segmentIndex, i)
		}
	}
	return sc
}

func (d *data) restore(sc scoped) {
	// recording flags belong to the scope only when the command moved the active slot
	activeMoved := d.activeMeetingID != sc.activeMeetingID &&
		(d.activeMeetingID == sc.id || sc.activeMeetingID == sc.id)

	d.removeMeeting(sc.id)
	if sc.meeting != nil {
		d.meetingByID[sc.id] = sc.meeting.Clone()
		d.meetingIDs = insertAt(d.meetingIDs, sc.index, sc.id)
	}
	for i, seg := range sc.segments {
		d.segmentByID[seg.ID] = seg.Clone()
		d.segmentIDs = insertAt(d.segmentIDs, sc.segmentIndex[i], seg.ID)
	}
	if activeMoved {
		d.activeMeetingID = sc.activeMeetingID
		d.isRecording = sc.isRecording
		d.elapsedMs = sc.elapsedMs
	}
}

func (d *data) putMeeting(m *types.Meeting) {
	if _, ok := d.meetingByID[m.ID]; !ok {
		pos := sort.Search(len(d.meetingIDs), func(i int) bool {
			other := d.meetingByID[d.meetingIDs[i]]
			return other == nil || !other.StartedAt.After(m.StartedAt)
		})
		d.meetingIDs = insertAt(d.meetingIDs, pos, m.ID)
	}
	d.meetingByID[m.ID] = m.Clone()
}

// setProcessing marks whether a meeting has transcription pending
func (d *data) setProcessing(id string, on bool) {
	if on {
		d.processing[id] = true
		return
	}
	delete(d.processing, id)
}

func (d *data) isProcessing() bool {
	return len(d.processing) > 0
}

func (d *data) removeMeeting(id string) {
	delete(d.meetingByID, id)
	d.meetingIDs = remove(d.meetingIDs, id)
	kept := d.segmentIDs[:0:0]
	for _, segID := range d.segmentIDs {
		if seg, ok := d.segmentByID[segID]; ok && seg.MeetingID == id {
			delete(d.segmentByID, segID)
			continue
		}
		kept = append(kept, segID)
	}
	d.segmentIDs = kept
	if d.activeMeetingID == id {
		d.activeMeetingID = ""
	}
}

func (d *data) setSegments(segments []types.MeetingSegment) {
	for _, id := range d.segmentIDs {
		delete(d.segmentByID, id)
	}
	d.segmentIDs = make([]string, 0, len(segments))
	for _, seg := range segments {
		d.segmentByID[seg.ID] = seg.Clone()
		d.segmentIDs = append(d.segmentIDs, seg.ID)
	}
}

// command is an optimistic local mutation followed by the remote step that
// makes it durable. A failed remote step restores the scoped snapshot.
type command struct {
	scope  string
	apply  func(d *data)
	remote func(ctx context.Context) error
}

func (s *State) execute(ctx context.Context, cmd command) error {
	s.mu.Lock()
	before := s.d.capture(cmd.scope)
	cmd.apply(&s.d)
	s.mu.Unlock()
	s.publish(EventState, cmd.scope)

	if err := cmd.remote(ctx); err != nil {
		s.mu.Lock()
		s.d.restore(before)
		s.mu.Unlock()
		s.publish(EventState, cmd.scope)
		logging.Debug(logging.CategoryMeeting, "rolled back local change for meeting %s: %v", cmd.scope, err)
		return err
	}
	return nil
}

// update applies a mutation without a remote step
func (s *State) update(meetingID string, fn func(d *data)) {
	s.mu.Lock()
	fn(&s.d)
	s.mu.Unlock()
	s.publish(EventState, meetingID)
}

func (s *State) setElapsed(ms int64) {
	s.mu.Lock()
	if !s.d.isRecording {
		s.mu.Unlock()
		return
	}
	s.d.elapsedMs = ms
	s.mu.Unlock()
	s.publish(EventElapsed, "")
}

// Meeting returns a copy of a loaded meeting
func (s *State) Meeting(id string) (*types.Meeting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.d.meetingByID[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Snapshot returns a deep copy of the state
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Meetings:        make([]*types.Meeting, 0, len(s.d.meetingIDs)),
		Segments:        make([]types.MeetingSegment, 0, len(s.d.segmentIDs)),
		ActiveMeetingID: s.d.activeMeetingID,
		IsRecording:     s.d.isRecording,
		IsProcessing:    s.d.isProcessing(),
		ElapsedMs:       s.d.elapsedMs,
	}
	for _, id := range s.d.meetingIDs {
		if m, ok := s.d.meetingByID[id]; ok {
			snap.Meetings = append(snap.Meetings, m.Clone())
		}
	}
	for _, id := range s.d.segmentIDs {
		if seg, ok := s.d.segmentByID[id]; ok {
			snap.Segments = append(snap.Segments, seg.Clone())
		}
	}
	return snap
}

// Subscribe returns a channel of state events. Slow subscribers miss events
// rather than blocking writers.
func (s *State) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *State) publish(kind, meetingID string) {
	s.mu.RLock()
	ev := Event{
		Type:            kind,
		ActiveMeetingID: s.d.activeMeetingID,
		IsRecording:     s.d.isRecording,
		IsProcessing:    s.d.isProcessing(),
		ElapsedMs:       s.d.elapsedMs,
	}
	if m, ok := s.d.meetingByID[meetingID]; ok && meetingID != "" {
		ev.Meeting = m.Clone()
	}
	s.mu.RUnlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func remove(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func insertAt(ids []string, pos int, id string) []string {
	if indexOf(ids, id) >= 0 {
		return ids
	}
	if pos < 0 || pos > len(ids) {
		pos = len(ids)
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:pos]...)
	out = append(out, id)
	return append(out, ids[pos:]...)
}
