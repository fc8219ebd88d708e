package session

import "callsync/internal/checklist"

// State 会话状态机的状态
// State is a node of the session state machine
type State int

const (
	Idle State = iota
	Recording
	Paused
	Stopped
	Processing
	Ready
	Uploading
	Uploaded
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Recording:  "recording",
	Paused:     "paused",
	Stopped:    "stopped",
	Processing: "processing",
	Ready:      "ready",
	Uploading:  "uploading",
	Uploaded:   "uploaded",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Capturing reports whether the hardware stream is held in this state.
func (s State) Capturing() bool { return s == Recording || s == Paused }

// View 会话的只读快照，供界面渲染
// View is a read-only snapshot of the session for surfaces
type View struct {
	ID             string
	State          State
	ElapsedSeconds int
	DealID         int64
	DealName       string
	Transcript     string
	Summary        string
	Checklist      []checklist.Item
	AudioBytes     int
	LastError      string
}

// HasAudio reports whether an audio artifact is held.
func (v View) HasAudio() bool { return v.AudioBytes > 0 }

// EventKind 事件类别 / EventKind classifies controller notifications
type EventKind int

const (
	EventState EventKind = iota
	EventTick
	EventChecklist
	EventError
)

// Event 控制器向界面推送的通知
// Event is a notification pushed from the controller to surfaces
type Event struct {
	Kind    EventKind
	State   State
	Seconds int
	Changed []string
	Err     error
}
