package scanner

import (
	"sync"
	"time"
)

// Phase identifies which stage a running scan is in.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseWalking     Phase = "walking"
	PhaseReconciling Phase = "reconciling"
)

// Progress is a snapshot of a scan's state, safe to serve while the scan
// runs.
type Progress struct {
	Running     bool      `json:"running"`
	Phase       Phase     `json:"phase"`
	CurrentFile string    `json:"current_file,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`

	FilesSeen     int `json:"files_seen"`
	FilesSkipped  int `json:"files_skipped"`
	TasksQueued   int `json:"tasks_queued"`
	TasksRequeued int `json:"tasks_requeued"`
	MarkedDone    int `json:"marked_done"`
	TasksRemoved  int `json:"tasks_removed"`
	Errors        int `json:"errors"`
}

type progressTracker struct {
	mu      sync.Mutex
	current Progress
}

func (t *progressTracker) start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = Progress{Running: true, Phase: PhaseWalking, StartedAt: time.Now()}
}

func (t *progressTracker) setPhase(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.Phase = p
	t.current.CurrentFile = ""
}

func (t *progressTracker) setFile(rel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.CurrentFile = rel
}

func (t *progressTracker) update(fn func(*Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.current)
}

func (t *progressTracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.Running = false
	t.current.Phase = PhaseIdle
	t.current.CurrentFile = ""
}

func (t *progressTracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.current
	if p.Phase == "" {
		p.Phase = PhaseIdle
	}
	return p
}
