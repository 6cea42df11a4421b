package pipeline

import (
	"strings"
	"sync"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
)

// State is the dispatcher's position in the stage cycle.
type State int

const (
	StateIdle State = iota
	StateClassifying
	StateResolving
	StateExecuting
	StateEvaluating
	StateAwaitingUser
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClassifying:
		return "classifying"
	case StateResolving:
		return "resolving"
	case StateExecuting:
		return "executing"
	case StateEvaluating:
		return "evaluating"
	case StateAwaitingUser:
		return "awaiting_user"
	default:
		return "unknown"
	}
}

// Turn is one utterance in the conversation.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Session holds one conversation's state. It is exclusively owned by
// the dispatcher; stages receive it explicitly and never share it
// across sessions.
type Session struct {
	ID string

	mu      sync.Mutex
	state   State
	history []Turn

	// scope set by the classifier, cached until the next classification
	areaScope []string
	typeScope []string

	// point-in-time capability snapshot, invalidated on scope change
	snapshot      []catalog.EntityCapabilities
	snapshotValid bool

	// last classified intent, kept so a clarifying turn can resume at
	// resolution without re-classifying
	intent *Intent

	// automations published this turn, still switched off pending the
	// user's go-ahead
	pendingAutomations []string

	// single-slot utterance queue: a newer unread utterance overwrites
	// an older one, tracking only the most recent unanswered command
	pending    string
	pendingSet bool

	busy bool
}

// NewSession creates an idle session.
func NewSession(id string) *Session {
	return &Session{ID: id}
}

// Queue stores an utterance in the single-slot queue, overwriting any
// unread one. Returns true when the caller should start a worker turn
// (the session was not already running one).
func (s *Session) Queue(utterance string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = utterance
	s.pendingSet = true
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

// TakePending pops the queued utterance. The second return is false
// when the slot is empty; the session is then released.
func (s *Session) TakePending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pendingSet {
		s.busy = false
		return "", false
	}
	s.pendingSet = false
	return s.pending, true
}

// State returns the current dispatcher state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Append adds a turn to the history.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	s.history = append(s.history, Turn{Role: role, Content: content})
	s.mu.Unlock()
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Transcript renders the history for prompt embedding.
func (s *Session) Transcript() string {
	var b strings.Builder
	for _, t := range s.History() {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// SetScope records the classifier's area and type sets and invalidates
// the capability snapshot.
func (s *Session) SetScope(areas, types []string) {
	s.mu.Lock()
	s.areaScope = areas
	s.typeScope = types
	s.snapshot = nil
	s.snapshotValid = false
	s.mu.Unlock()
}

// Scope returns the current (area-set, type-set) pair.
func (s *Session) Scope() (areas, types []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.areaScope, s.typeScope
}

// Snapshot returns the cached capability snapshot, if valid.
func (s *Session) Snapshot() ([]catalog.EntityCapabilities, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.snapshotValid
}

// SetSnapshot caches the entities resolved for the current scope.
func (s *Session) SetSnapshot(caps []catalog.EntityCapabilities) {
	s.mu.Lock()
	s.snapshot = caps
	s.snapshotValid = true
	s.mu.Unlock()
}

// Intent returns the cached intent from the last classification.
func (s *Session) Intent() *Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intent
}

// SetIntent caches the classified intent for clarifying turns.
func (s *Session) SetIntent(intent *Intent) {
	s.mu.Lock()
	s.intent = intent
	s.mu.Unlock()
}

// SetPendingAutomations records automations awaiting the user's
// go-ahead to enable them.
func (s *Session) SetPendingAutomations(ids []string) {
	s.mu.Lock()
	s.pendingAutomations = ids
	s.mu.Unlock()
}

// TakePendingAutomations pops the automations awaiting confirmation.
func (s *Session) TakePendingAutomations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.pendingAutomations
	s.pendingAutomations = nil
	return ids
}

// Reset wipes conversational memory. Terminal stage codes call this so
// completed or abandoned requests do not grow context without bound.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.areaScope = nil
	s.typeScope = nil
	s.snapshot = nil
	s.snapshotValid = false
	s.intent = nil
	s.pendingAutomations = nil
	s.state = StateIdle
	s.mu.Unlock()
}
