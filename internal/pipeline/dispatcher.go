package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// ClassifierStage classifies turns. Implemented by Classifier.
type ClassifierStage interface {
	Classify(ctx context.Context, session *Session) Intent
	ClassifyResume(ctx context.Context, session *Session) ResumeDecision
	ClassifyConfirm(ctx context.Context, session *Session) bool
}

// ResolverStage resolves intents to executable results. Implemented by
// Resolver.
type ResolverStage interface {
	Resolve(ctx context.Context, session *Session, intent Intent) (StageResult, error)
}

// ExecutorStage carries out stage results. Implemented by Executor.
type ExecutorStage interface {
	Execute(ctx context.Context, session *Session, result StageResult) Outcome
}

// EvaluatorStage judges outcomes. Implemented by Evaluator.
type EvaluatorStage interface {
	Evaluate(ctx context.Context, session *Session, outcome Outcome) Verdict
}

// Dependencies bundles everything the dispatcher needs. Inject fakes
// in tests.
type Dependencies struct {
	Classifier ClassifierStage
	Resolver   ResolverStage
	Executor   ExecutorStage
	Evaluator  EvaluatorStage
	Notifier   Notifier
	Logger     *slog.Logger

	// MaxTurnLoops caps resolve/execute/evaluate iterations per turn.
	MaxTurnLoops int
}

// Dispatcher owns the sessions and drives the stage transition table.
// Stages run strictly sequentially within a session; independent
// sessions run concurrently on their own workers.
type Dispatcher struct {
	deps Dependencies

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewDispatcher creates the pipeline entry point.
func NewDispatcher(deps Dependencies) *Dispatcher {
	if deps.MaxTurnLoops <= 0 {
		deps.MaxTurnLoops = 8
	}
	return &Dispatcher{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for id, creating it on first use.
func (d *Dispatcher) Session(id string) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	if !ok {
		s = NewSession(id)
		d.sessions[id] = s
	}
	return s
}

// HandleUserTurn is the core's single entry point. It queues the
// utterance on the session's single-slot queue and starts a worker if
// none is running. An in-flight turn is never preempted; the queued
// utterance is consumed once the turn pauses or finishes.
func (d *Dispatcher) HandleUserTurn(ctx context.Context, sessionID, utterance string) {
	s := d.Session(sessionID)
	if s.Queue(utterance) {
		go d.work(ctx, s)
	}
}

// HandleUserTurnSync runs the turn on the caller's goroutine. The CLI
// uses this; the serve loop goes through HandleUserTurn.
func (d *Dispatcher) HandleUserTurnSync(ctx context.Context, sessionID, utterance string) {
	s := d.Session(sessionID)
	if s.Queue(utterance) {
		d.work(ctx, s)
	}
}

func (d *Dispatcher) work(ctx context.Context, s *Session) {
	for {
		utterance, ok := s.TakePending()
		if !ok {
			return
		}
		d.runTurn(ctx, s, utterance)
	}
}

func (d *Dispatcher) runTurn(ctx context.Context, s *Session, utterance string) {
	d.deps.Logger.Info("turn started", "session", s.ID, "state", s.State())
	s.Append("user", utterance)

	if s.State() == StateAwaitingUser {
		if ids := s.TakePendingAutomations(); len(ids) > 0 {
			d.settleAutomations(ctx, s, ids)
			return
		}
	}

	intent := d.classifyTurn(ctx, s)

	var result StageResult
	switch intent.Kind {
	case IntentSmallTalk:
		result = StageResult{Kind: KindSmallTalk}
	case IntentMedia:
		result = StageResult{Kind: KindMedia, Query: intent.Query}
	case IntentWebSearch:
		result = StageResult{Kind: KindWebSearch, Query: intent.Query}
	case IntentNeedMoreInput:
		d.ask(ctx, s, needMoreInput(intent.Question).Question)
		return
	default:
		s.setState(StateResolving)
		var err error
		result, err = d.deps.Resolver.Resolve(ctx, s, intent)
		if err != nil {
			d.apologize(ctx, s, err)
			return
		}
	}

	d.iterate(ctx, s, intent, result)
}

// settleAutomations acts on the user's answer to "should I switch it
// on?". Confirmed automations are enabled through the executor;
// declined ones stay published but off.
func (d *Dispatcher) settleAutomations(ctx context.Context, s *Session, ids []string) {
	if !d.deps.Classifier.ClassifyConfirm(ctx, s) {
		d.say(ctx, s, "Alright, I'll leave it switched off. You can enable it from the hub anytime.")
		s.Reset()
		return
	}

	s.setState(StateExecuting)
	outcome := d.deps.Executor.Execute(ctx, s, StageResult{
		Kind:          KindConfirm,
		AutomationIDs: ids,
		Message:       "Done, it's switched on now.",
	})
	if outcome.Err != nil {
		d.apologize(ctx, s, outcome.Err)
		return
	}
	d.say(ctx, s, outcome.Text)
	s.Reset()
}

// classifyTurn picks the intent for this turn. A turn arriving while
// the session awaits input resumes the cached intent when the user is
// answering the pending question; a materially new request
// re-classifies from scratch.
func (d *Dispatcher) classifyTurn(ctx context.Context, s *Session) Intent {
	if s.State() == StateAwaitingUser && s.Intent() != nil {
		if d.deps.Classifier.ClassifyResume(ctx, s) == ResumeClarify {
			return *s.Intent()
		}
	}

	s.setState(StateClassifying)
	intent := d.deps.Classifier.Classify(ctx, s)
	s.SetScope(intent.Areas, intent.Types)
	s.SetIntent(&intent)
	return intent
}

// iterate runs the execute/evaluate loop until a verdict pauses or
// ends the turn, bounded by MaxTurnLoops.
func (d *Dispatcher) iterate(ctx context.Context, s *Session, intent Intent, result StageResult) {
	for loops := 0; loops < d.deps.MaxTurnLoops; loops++ {
		if result.Kind == KindNeedMoreInput {
			d.ask(ctx, s, result.Question)
			return
		}

		s.setState(StateExecuting)
		outcome := d.deps.Executor.Execute(ctx, s, result)

		// A wholesale read/search failure means the collaborator is
		// unreachable; pause rather than loop. Write batches and
		// automation publishes carry their failures to the evaluator
		// instead.
		if outcome.Err != nil && result.Kind != KindWriteState && result.Kind != KindGenerateAutomation {
			d.apologize(ctx, s, outcome.Err)
			return
		}

		// Freshly published automations are off; remember them so the
		// user's go-ahead on the next turn can switch them on.
		if result.Kind == KindGenerateAutomation && len(outcome.AutomationIDs) > 0 {
			s.SetPendingAutomations(outcome.AutomationIDs)
		}

		s.setState(StateEvaluating)
		verdict := d.deps.Evaluator.Evaluate(ctx, s, outcome)
		d.deps.Logger.Info("turn evaluated", "session", s.ID, "verdict", verdict.Code)

		switch verdict.Code {
		case VerdictLoopResolve:
			s.setState(StateResolving)
			next, err := d.deps.Resolver.Resolve(ctx, s, intent)
			if err != nil {
				d.apologize(ctx, s, err)
				return
			}
			result = next

		case VerdictLoopExecute:
			if verdict.Retry != nil {
				result = *verdict.Retry
			}

		case VerdictAskUser:
			d.ask(ctx, s, verdict.Message)
			return

		case VerdictSatisfiedMore:
			d.say(ctx, s, verdict.Message)
			s.setState(StateAwaitingUser)
			return

		case VerdictSatisfiedDone:
			d.say(ctx, s, verdict.Message)
			s.Reset()
			return

		case VerdictGiveUp:
			d.say(ctx, s, verdict.Message)
			s.Reset()
			return

		default:
			// Totality guard: an unrecognized verdict apologizes and
			// idles instead of crashing or spinning.
			d.deps.Logger.Error("unrecognized verdict code", "session", s.ID, "code", int(verdict.Code))
			d.say(ctx, s, "Sorry, I got confused there. Could you try again?")
			s.Reset()
			return
		}
	}

	d.deps.Logger.Warn("turn loop ceiling reached", "session", s.ID, "loops", d.deps.MaxTurnLoops)
	d.say(ctx, s, "Sorry, I tried a few times but couldn't get that done.")
	s.Reset()
}

// say speaks a message and records it in the history.
func (d *Dispatcher) say(ctx context.Context, s *Session, message string) {
	if message == "" {
		message = "Done."
	}
	s.Append("assistant", message)
	d.deps.Notifier.Speak(ctx, message)
}

// ask speaks a question and pauses the session for the user's answer.
// Scope and intent stay cached so the answer can resume resolution.
func (d *Dispatcher) ask(ctx context.Context, s *Session, question string) {
	s.Append("assistant", question)
	d.deps.Notifier.Speak(ctx, question)
	s.setState(StateAwaitingUser)
}

// apologize handles an unreachable collaborator: tell the user which
// part failed, pause, keep the session so the next turn can retry.
func (d *Dispatcher) apologize(ctx context.Context, s *Session, err error) {
	d.deps.Logger.Error("turn aborted", "session", s.ID, "error", err)
	d.ask(ctx, s, apologyFor(err))
}
