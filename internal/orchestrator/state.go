package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"retrievr/monitor-service/internal/model"
)

// Phase names one stage of the monitoring cycle.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseFetchingProfiles Phase = "fetching_profiles"
	PhaseScraping         Phase = "scraping"
	PhaseDeduplicating    Phase = "deduplicating"
	PhaseMatching         Phase = "matching"
	PhaseNotifying        Phase = "notifying"
	PhaseSummarizing      Phase = "summarizing"
)

// LogEntry is a single line of the cycle trace.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Snapshot is the JSON shape served by GET /status.
type Snapshot struct {
	Phase       Phase               `json:"phase"`
	Running     bool                `json:"running"`
	CycleID     string              `json:"cycleId,omitempty"`
	LastSummary *model.CycleSummary `json:"lastSummary,omitempty"`
	LastError   string              `json:"lastError,omitempty"`
	Logs        []LogEntry          `json:"logs"`
}

// Manager tracks the phase of the running cycle with thread-safe access.
// It also owns the single-flight slot: TryBegin claims it, Fail and
// Complete release it.
type Manager struct {
	mu sync.RWMutex

	phase   Phase
	running bool
	cycleID string

	lastSummary *model.CycleSummary
	lastErr     error

	logs    []LogEntry
	maxLogs int
}

func NewManager() *Manager {
	return &Manager{
		phase:   PhaseIdle,
		logs:    make([]LogEntry, 0),
		maxLogs: 50, // keep the last 50 log entries
	}
}

// TryBegin claims the cycle slot. It reports false while another cycle is
// in flight.
func (m *Manager) TryBegin(cycleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return false
	}
	m.running = true
	m.cycleID = cycleID
	m.phase = PhaseFetchingProfiles
	m.lastErr = nil
	m.appendLog("Cycle " + cycleID + " started")
	return true
}

func (m *Manager) SetPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = p
	m.appendLog("Phase: " + string(p))
}

func (m *Manager) AddLog(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLog(message)
}

// appendLog requires m.mu held.
func (m *Manager) appendLog(message string) {
	m.logs = append(m.logs, LogEntry{Timestamp: time.Now(), Message: message})
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[len(m.logs)-m.maxLogs:]
	}
}

// Fail releases the slot and records the error that ended the cycle.
func (m *Manager) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.phase = PhaseIdle
	m.lastErr = err
	m.appendLog(fmt.Sprintf("Cycle failed: %v", err))
}

// Complete releases the slot and retains the summary for /status.
func (m *Manager) Complete(s model.CycleSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.phase = PhaseIdle
	m.lastSummary = &s
	m.appendLog(fmt.Sprintf("Cycle complete: %d new, %d matches, %d notified, %d errors",
		s.NewListings, s.MatchesFound, s.NotificationsSent, s.Errors))
}

func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Snapshot copies the current state for the admin API.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Phase:   m.phase,
		Running: m.running,
		CycleID: m.cycleID,
		Logs:    append([]LogEntry{}, m.logs...),
	}
	if m.lastSummary != nil {
		cp := *m.lastSummary
		snap.LastSummary = &cp
	}
	if m.lastErr != nil {
		snap.LastError = m.lastErr.Error()
	}
	return snap
}
