package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Executor carries out a resolved stage result against the hub. One
// handler per result kind; the dispatch map replaces positional
// action-list indexing so an unhandled kind is impossible to miss.
type Executor struct {
	invoker       ActionInvoker
	sink          AutomationSink
	searcher      WebSearcher
	media         MediaPlayer
	oracle        Oracle
	bulkThreshold int
	logger        *slog.Logger

	handlers map[ResultKind]func(context.Context, *Session, StageResult) Outcome
}

// NewExecutor creates an executor stage.
func NewExecutor(invoker ActionInvoker, sink AutomationSink, searcher WebSearcher, media MediaPlayer, o Oracle, bulkThreshold int, logger *slog.Logger) *Executor {
	e := &Executor{
		invoker:       invoker,
		sink:          sink,
		searcher:      searcher,
		media:         media,
		oracle:        o,
		bulkThreshold: bulkThreshold,
		logger:        logger,
	}
	e.handlers = map[ResultKind]func(context.Context, *Session, StageResult) Outcome{
		KindReadState:          e.executeRead,
		KindWriteState:         e.executeWrite,
		KindGenerateAutomation: e.executeAutomation,
		KindConfirm:            e.executeConfirm,
		KindSmallTalk:          e.executeSmallTalk,
		KindMedia:              e.executeMedia,
		KindWebSearch:          e.executeWebSearch,
		KindDone:               e.executeConfirm,
	}
	return e
}

// Execute runs the handler for the result's kind. An unrecognized kind
// routes to small talk; execution never crashes the turn.
func (e *Executor) Execute(ctx context.Context, session *Session, result StageResult) Outcome {
	handler, ok := e.handlers[result.Kind]
	if !ok {
		e.logger.Error("no handler for stage result, falling back to small talk",
			"session", session.ID, "kind", result.Kind)
		handler = e.executeSmallTalk
	}
	return handler(ctx, session, result)
}

func (e *Executor) executeRead(ctx context.Context, session *Session, result StageResult) Outcome {
	out := Outcome{Result: result}

	if !result.Range.IsZero() {
		records, err := e.invoker.ReadHistory(ctx, result.EntityIDs, result.Range.Start, result.Range.End)
		if err != nil {
			out.Err = fmt.Errorf("history read: %w", err)
			return out
		}
		out.History = records
		return out
	}

	// Above the threshold one bulk fetch beats per-entity round trips.
	if len(result.EntityIDs) > e.bulkThreshold {
		all, err := e.invoker.ReadAllStates(ctx)
		if err != nil {
			out.Err = fmt.Errorf("bulk state read: %w", err)
			return out
		}
		wanted := make(map[string]bool, len(result.EntityIDs))
		for _, id := range result.EntityIDs {
			wanted[id] = true
		}
		for _, rec := range all {
			if wanted[rec.EntityID] {
				out.States = append(out.States, rec)
			}
		}
		return out
	}

	var failures int
	for _, id := range result.EntityIDs {
		rec, err := e.invoker.ReadState(ctx, id)
		if err != nil {
			e.logger.Warn("state read failed", "session", session.ID, "entity", id, "error", err)
			failures++
			continue
		}
		out.States = append(out.States, rec)
	}
	if failures > 0 && len(out.States) == 0 {
		out.Err = fmt.Errorf("all %d state reads failed", failures)
	}
	return out
}

func (e *Executor) executeWrite(ctx context.Context, session *Session, result StageResult) Outcome {
	out := Outcome{Result: result}

	// One call per triple. A failed call is recorded and the batch
	// moves on; the evaluator decides what a partial failure means.
	for _, call := range result.Calls {
		domain, _, _ := strings.Cut(call.EntityID, ".")
		payload := map[string]any{"entity_id": call.EntityID}
		if call.Field != "" {
			payload[call.Field] = call.Value
		}

		reply, err := e.invoker.InvokeService(ctx, domain, call.Service, payload)
		if err != nil {
			e.logger.Warn("service call failed",
				"session", session.ID, "entity", call.EntityID, "service", call.Service, "error", err)
		}
		out.Writes = append(out.Writes, CallOutcome{Call: call, Err: err, Reply: reply})
	}
	return out
}

func (e *Executor) executeAutomation(ctx context.Context, session *Session, result StageResult) Outcome {
	out := Outcome{Result: result}

	var failures []string
	for _, draft := range result.Drafts {
		id, err := e.sink.Publish(ctx, draft)
		if err != nil {
			e.logger.Warn("automation draft rejected", "session", session.ID, "error", err)
			failures = append(failures, err.Error())
			continue
		}
		out.AutomationIDs = append(out.AutomationIDs, id)
	}

	if len(out.AutomationIDs) == 0 && len(failures) > 0 {
		out.Err = fmt.Errorf("automation rejected: %s", strings.Join(failures, "; "))
	}
	return out
}

// executeConfirm acknowledges a confirmed step. When the confirmation
// covers published-but-disabled automations it switches them on.
func (e *Executor) executeConfirm(ctx context.Context, session *Session, result StageResult) Outcome {
	out := Outcome{Result: result, Text: result.Message}

	for _, id := range result.AutomationIDs {
		if err := e.sink.Enable(ctx, id); err != nil {
			e.logger.Warn("automation enable failed", "session", session.ID, "automation", id, "error", err)
			out.Err = fmt.Errorf("enable automation %s: %w", id, err)
			continue
		}
		out.AutomationIDs = append(out.AutomationIDs, id)
	}
	return out
}

func (e *Executor) executeSmallTalk(ctx context.Context, session *Session, result StageResult) Outcome {
	out := Outcome{Result: result}

	reply, err := e.oracle.GenerateWithSystem(ctx, smallTalkSystemPrompt, session.Transcript())
	if err != nil {
		e.logger.Warn("small talk generation failed", "session", session.ID, "error", err)
		reply = "Sorry, I lost my train of thought. What were you saying?"
	}
	out.Text = reply
	return out
}

func (e *Executor) executeMedia(ctx context.Context, session *Session, result StageResult) Outcome {
	out := Outcome{Result: result}

	reply, err := e.media.Play(ctx, result.Query)
	if err != nil {
		e.logger.Warn("media playback failed", "session", session.ID, "request", result.Query, "error", err)
		out.Err = fmt.Errorf("media playback: %w", err)
		return out
	}
	out.Text = reply
	return out
}

func (e *Executor) executeWebSearch(ctx context.Context, session *Session, result StageResult) Outcome {
	out := Outcome{Result: result}

	findings, err := e.searcher.Search(ctx, result.Query)
	if err != nil {
		out.Err = fmt.Errorf("web search: %w: %w", errSearchUnavailable, err)
		return out
	}

	reply, err := e.oracle.GenerateWithSystem(ctx, webSearchSystemPrompt,
		"Question: "+result.Query+"\nFindings: "+findings)
	if err != nil {
		e.logger.Warn("search summary failed, speaking findings directly",
			"session", session.ID, "error", err)
		reply = findings
	}
	out.Text = reply
	return out
}
