package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/hearth-go/internal/oracle"
)

// Evaluator judges whether the accumulated results satisfy the request.
// It is the sole authority over whether the dispatcher keeps iterating.
type Evaluator struct {
	oracle Oracle
	logger *slog.Logger
}

// NewEvaluator creates an evaluator stage.
func NewEvaluator(o Oracle, logger *slog.Logger) *Evaluator {
	return &Evaluator{oracle: o, logger: logger}
}

var verdictCodes = map[string]VerdictCode{
	"loop_resolve":   VerdictLoopResolve,
	"loop_execute":   VerdictLoopExecute,
	"ask_user":       VerdictAskUser,
	"satisfied_more": VerdictSatisfiedMore,
	"satisfied_done": VerdictSatisfiedDone,
	"give_up":        VerdictGiveUp,
}

// Evaluate judges the latest executor outcome against the session. A
// malformed oracle response degrades to giving up politely rather than
// looping blind.
func (e *Evaluator) Evaluate(ctx context.Context, session *Session, outcome Outcome) Verdict {
	prompt := "Execution outcome:\n" + describeOutcome(outcome) +
		"\nConversation:\n" + session.Transcript()

	raw, err := e.oracle.GenerateWithSystem(ctx, evaluateSystemPrompt, prompt)
	if err != nil {
		e.logger.Error("evaluation call failed", "session", session.ID, "error", err)
		return Verdict{Code: VerdictGiveUp, Message: "Sorry, I ran into a problem finishing that."}
	}

	var payload struct {
		Verdict string `json:"verdict"`
		Message string `json:"message"`
	}
	if err := oracle.DecodeJSON(raw, &payload); err != nil {
		e.logger.Warn("evaluation output malformed", "session", session.ID, "error", err)
		return Verdict{Code: VerdictGiveUp, Message: "Sorry, I couldn't work out whether that did what you wanted."}
	}

	code, ok := verdictCodes[payload.Verdict]
	if !ok {
		e.logger.Warn("evaluation emitted unknown verdict", "session", session.ID, "verdict", payload.Verdict)
		return Verdict{Code: VerdictGiveUp, Message: "Sorry, I couldn't finish that request."}
	}
	return Verdict{Code: code, Message: payload.Message}
}

func describeOutcome(outcome Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "kind: %s\n", outcome.Result.Kind)

	if outcome.Err != nil {
		fmt.Fprintf(&b, "error: %v\n", outcome.Err)
	}
	for _, rec := range outcome.States {
		fmt.Fprintf(&b, "state %s = %q\n", rec.EntityID, rec.State)
	}
	for _, rec := range outcome.History {
		fmt.Fprintf(&b, "history %s = %q at %s\n", rec.EntityID, rec.State, rec.When.Format(time.RFC3339))
	}
	for _, w := range outcome.Writes {
		if w.Err != nil {
			fmt.Fprintf(&b, "call %s.%s failed: %v\n", w.Call.EntityID, w.Call.Service, w.Err)
		} else {
			fmt.Fprintf(&b, "call %s.%s succeeded\n", w.Call.EntityID, w.Call.Service)
		}
	}
	for _, id := range outcome.AutomationIDs {
		if outcome.Result.Kind == KindGenerateAutomation {
			fmt.Fprintf(&b, "automation published switched off: %s\n", id)
		} else {
			fmt.Fprintf(&b, "automation enabled: %s\n", id)
		}
	}
	if outcome.Text != "" {
		fmt.Fprintf(&b, "text: %s\n", outcome.Text)
	}
	return b.String()
}
