// Package pipeline implements the intent-dispatch pipeline: a finite
// state controller routing a user utterance through classification,
// capability resolution, execution and evaluation until the request is
// satisfied or abandoned.
package pipeline

import "time"

// ResultKind discriminates the StageResult union. It replaces the
// overloaded integer codes that grow in systems like this with a closed
// set the dispatcher can switch over exhaustively.
type ResultKind int

const (
	KindSmallTalk ResultKind = iota
	KindMedia
	KindWebSearch
	KindNeedMoreInput
	KindReadState
	KindWriteState
	KindGenerateAutomation
	KindConfirm
	KindDone
)

func (k ResultKind) String() string {
	switch k {
	case KindSmallTalk:
		return "small_talk"
	case KindMedia:
		return "media"
	case KindWebSearch:
		return "web_search"
	case KindNeedMoreInput:
		return "need_more_input"
	case KindReadState:
		return "read_state"
	case KindWriteState:
		return "write_state"
	case KindGenerateAutomation:
		return "generate_automation"
	case KindConfirm:
		return "confirm"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// WriteCall is one (entity, service, option) invocation.
type WriteCall struct {
	EntityID string
	Service  string
	Field    string
	Value    any
}

// TimeRange bounds a history read. A zero range means "live state".
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// StageResult is the tagged union every stage produces and only the
// dispatcher consumes. Exactly the fields for the active Kind are set.
type StageResult struct {
	Kind ResultKind

	// NeedMoreInput
	Question string

	// ReadState
	EntityIDs []string
	Range     TimeRange

	// WriteState
	Calls []WriteCall

	// GenerateAutomation
	Drafts []string

	// Confirm: published-but-disabled automations to switch on
	AutomationIDs []string

	// Confirm, Done, SmallTalk surface text; Media and WebSearch query
	Message string
	Query   string
}

// CallOutcome records one write call's result. Partial failures stay
// in the batch; the evaluator sees every outcome.
type CallOutcome struct {
	Call  WriteCall
	Err   error
	Reply string
}

// Outcome is what the executor hands to the evaluator.
type Outcome struct {
	Result StageResult

	// Read outcomes
	States  []StateRecord
	History []StateRecord

	// Write outcomes
	Writes []CallOutcome

	// Automation outcomes
	AutomationIDs []string

	// Auxiliary text (small talk reply, search summary, confirmation)
	Text string

	// Err is set when the whole branch failed (external unavailable),
	// as opposed to per-call failures inside Writes.
	Err error
}

// StateRecord is one observed entity state.
type StateRecord struct {
	EntityID string
	State    string
	When     time.Time
}

// VerdictCode is the evaluator's decision discriminator.
type VerdictCode int

const (
	VerdictLoopResolve VerdictCode = iota
	VerdictLoopExecute
	VerdictAskUser
	VerdictSatisfiedMore
	VerdictSatisfiedDone
	VerdictGiveUp
)

func (v VerdictCode) String() string {
	switch v {
	case VerdictLoopResolve:
		return "loop_resolve"
	case VerdictLoopExecute:
		return "loop_execute"
	case VerdictAskUser:
		return "ask_user"
	case VerdictSatisfiedMore:
		return "satisfied_more"
	case VerdictSatisfiedDone:
		return "satisfied_done"
	case VerdictGiveUp:
		return "give_up"
	default:
		return "unknown"
	}
}

// Verdict is the evaluator's output.
type Verdict struct {
	Code    VerdictCode
	Message string
	// Retry carries a narrowed result when the verdict loops straight
	// back to execution.
	Retry *StageResult
}
