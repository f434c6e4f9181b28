package deployer

import (
	"sync"
	"time"

	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// ProgressSnapshot is a point-in-time view of a run.
type ProgressSnapshot struct {
	RunID     string                   `json:"runId,omitempty"`
	Mode      string                   `json:"mode,omitempty"`
	Started   time.Time                `json:"started"`
	Finished  bool                     `json:"finished"`
	Error     string                   `json:"error,omitempty"`
	Current   string                   `json:"current,omitempty"`
	Completed []string                 `json:"completed"`
	Table     *interfaces.AddressTable `json:"table,omitempty"`
}

// Progress tracks the stages of a run. It is safe for concurrent use and a
// nil *Progress ignores all updates.
type Progress struct {
	mu    sync.RWMutex
	state ProgressSnapshot
	done  chan struct{}
}

func NewProgress() *Progress {
	return &Progress{
		state: ProgressSnapshot{Completed: []string{}},
		done:  make(chan struct{}),
	}
}

// Start records the beginning of a run.
func (p *Progress) Start(runID, mode string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.RunID = runID
	p.state.Mode = mode
	p.state.Started = time.Now().UTC()
}

// Begin records the stage currently in flight.
func (p *Progress) Begin(stage string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Current = stage
}

// Complete records a finished stage.
func (p *Progress) Complete(stage string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Completed = append(p.state.Completed, stage)
	if p.state.Current == stage {
		p.state.Current = ""
	}
}

// SetTable publishes the address table accumulated so far.
func (p *Progress) SetTable(table *interfaces.AddressTable) {
	if p == nil || table == nil {
		return
	}
	copied := *table
	copied.Identities.Participants = append([]interfaces.ParticipantIdentity(nil), table.Identities.Participants...)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Table = &copied
}

// Finish marks the run as done. It may be called once.
func (p *Progress) Finish(err error) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Finished {
		return
	}
	p.state.Finished = true
	p.state.Current = ""
	if err != nil {
		p.state.Error = err.Error()
	}
	close(p.done)
}

// Done is closed when the run finishes.
func (p *Progress) Done() <-chan struct{} {
	return p.done
}

// Finished reports whether the run is over.
func (p *Progress) Finished() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Finished
}

// HasCompleted reports whether stage has completed.
func (p *Progress) HasCompleted(stage string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.state.Completed {
		if s == stage {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{Completed: []string{}}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.state
	s.Completed = append([]string{}, p.state.Completed...)
	return s
}
