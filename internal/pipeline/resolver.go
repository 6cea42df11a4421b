package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
	"github.com/raphaelgruber/hearth-go/internal/oracle"
)

// defaultHistoryWindow bounds a history read when the user names no
// time range.
const defaultHistoryWindow = 24 * time.Hour

// Resolver narrows an intent to concrete entities, services and
// options. Its output is always either NeedMoreInput or a populated
// result ready for execution.
type Resolver struct {
	oracle Oracle
	store  EntityStore
	logger *slog.Logger
}

// NewResolver creates a resolver stage.
func NewResolver(o Oracle, store EntityStore, logger *slog.Logger) *Resolver {
	return &Resolver{oracle: o, store: store, logger: logger}
}

// Resolve routes to the read, write or automation resolution matching
// the intent. A returned error means the entity store or oracle is
// unreachable; scope problems surface as NeedMoreInput instead.
func (r *Resolver) Resolve(ctx context.Context, session *Session, intent Intent) (StageResult, error) {
	switch intent.Kind {
	case IntentReadLive, IntentReadHistory:
		return r.resolveRead(ctx, session, intent)
	case IntentWrite:
		return r.resolveWrite(ctx, session)
	case IntentAutomation:
		return r.resolveAutomation(ctx, session)
	case IntentAutomationInit:
		// proposing automations considers the whole home, not a scope
		session.SetScope(nil, nil)
		return r.resolveAutomation(ctx, session)
	default:
		return StageResult{}, fmt.Errorf("intent %s does not resolve", intent.Kind)
	}
}

// candidates fetches the entities in the session's scope, reusing the
// cached snapshot when the scope has not changed.
func (r *Resolver) candidates(ctx context.Context, session *Session) ([]catalog.EntityCapabilities, error) {
	if caps, ok := session.Snapshot(); ok {
		return caps, nil
	}
	areas, types := session.Scope()
	caps, err := r.store.ListEntities(ctx, areas, types)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w: %w", errCatalogUnavailable, err)
	}
	session.SetSnapshot(caps)
	return caps, nil
}

type readPayload struct {
	EntityIDs []string `json:"entity_ids"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Question  string   `json:"question"`
}

func (r *Resolver) resolveRead(ctx context.Context, session *Session, intent Intent) (StageResult, error) {
	caps, err := r.candidates(ctx, session)
	if err != nil {
		return StageResult{}, err
	}
	caps = restrictTimestampReads(caps)
	if len(caps) == 0 {
		return needMoreInput(""), nil
	}

	prompt := "Candidate entities:\n" + describeEntities(caps) +
		"\nConversation:\n" + session.Transcript()

	raw, err := r.oracle.GenerateWithSystem(ctx, resolveReadSystemPrompt, prompt)
	if err != nil {
		return StageResult{}, fmt.Errorf("read resolution: %w: %w", errOracleUnavailable, err)
	}

	var payload readPayload
	if err := oracle.DecodeJSON(raw, &payload); err != nil {
		r.logger.Warn("read resolution output malformed", "session", session.ID, "error", err)
		return needMoreInput(""), nil
	}

	known := entityIDSet(caps)
	var ids []string
	for _, id := range payload.EntityIDs {
		if known[id] {
			ids = append(ids, id)
		} else {
			r.logger.Warn("read resolution picked unknown entity", "session", session.ID, "entity", id)
		}
	}
	if len(ids) == 0 {
		return needMoreInput(payload.Question), nil
	}

	result := StageResult{Kind: KindReadState, EntityIDs: ids}
	if start, err := time.Parse(time.RFC3339, payload.Start); err == nil {
		result.Range.Start = start
	}
	if end, err := time.Parse(time.RFC3339, payload.End); err == nil {
		result.Range.End = end
	}
	if intent.Kind == IntentReadHistory && result.Range.IsZero() {
		now := time.Now()
		result.Range = TimeRange{Start: now.Add(-defaultHistoryWindow), End: now}
	}
	return result, nil
}

type writePayload struct {
	Calls []struct {
		EntityID string `json:"entity_id"`
		Service  string `json:"service"`
		Field    string `json:"field"`
		Value    any    `json:"value"`
	} `json:"calls"`
	Question string `json:"question"`
}

func (r *Resolver) resolveWrite(ctx context.Context, session *Session) (StageResult, error) {
	caps, err := r.candidates(ctx, session)
	if err != nil {
		return StageResult{}, err
	}
	if len(caps) == 0 {
		return needMoreInput(""), nil
	}

	prompt := "Candidate entities with their services:\n" + describeCapabilities(caps) +
		"\nConversation:\n" + session.Transcript()

	raw, err := r.oracle.GenerateWithSystem(ctx, resolveWriteSystemPrompt, prompt)
	if err != nil {
		return StageResult{}, fmt.Errorf("write resolution: %w: %w", errOracleUnavailable, err)
	}

	var payload writePayload
	if err := oracle.DecodeJSON(raw, &payload); err != nil {
		r.logger.Warn("write resolution output malformed", "session", session.ID, "error", err)
		return needMoreInput(""), nil
	}

	byID := make(map[string]catalog.EntityCapabilities, len(caps))
	for _, c := range caps {
		byID[c.Entity.ID] = c
	}

	var calls []WriteCall
	for _, call := range payload.Calls {
		entry, ok := byID[call.EntityID]
		if !ok || !supportsService(entry, call.Service) {
			r.logger.Warn("write resolution picked illegal call",
				"session", session.ID, "entity", call.EntityID, "service", call.Service)
			continue
		}
		calls = append(calls, WriteCall{
			EntityID: call.EntityID,
			Service:  call.Service,
			Field:    call.Field,
			Value:    call.Value,
		})
	}
	if len(calls) == 0 {
		return needMoreInput(payload.Question), nil
	}
	return StageResult{Kind: KindWriteState, Calls: calls}, nil
}

func (r *Resolver) resolveAutomation(ctx context.Context, session *Session) (StageResult, error) {
	caps, err := r.candidates(ctx, session)
	if err != nil {
		return StageResult{}, err
	}
	caps = restrictTimestampReads(caps)
	if len(caps) == 0 {
		return needMoreInput(""), nil
	}

	prompt := "Candidate entities with their services:\n" + describeCapabilities(caps) +
		"\nConversation:\n" + session.Transcript()

	raw, err := r.oracle.GenerateWithSystem(ctx, resolveAutomationSystemPrompt, prompt)
	if err != nil {
		return StageResult{}, fmt.Errorf("automation resolution: %w: %w", errOracleUnavailable, err)
	}

	if draft, err := oracle.ExtractFenced(raw, "yaml"); err == nil {
		return StageResult{Kind: KindGenerateAutomation, Drafts: []string{draft}}, nil
	}

	var payload struct {
		Question string `json:"question"`
	}
	if err := oracle.DecodeJSON(raw, &payload); err == nil && payload.Question != "" {
		return needMoreInput(payload.Question), nil
	}

	r.logger.Warn("automation resolution produced no draft", "session", session.ID)
	return needMoreInput(""), nil
}

func needMoreInput(question string) StageResult {
	if question == "" {
		question = "I couldn't pin down which device you mean. Could you say a bit more?"
	}
	return StageResult{Kind: KindNeedMoreInput, Question: question}
}

func entityIDSet(caps []catalog.EntityCapabilities) map[string]bool {
	set := make(map[string]bool, len(caps))
	for _, c := range caps {
		set[c.Entity.ID] = true
	}
	return set
}

func supportsService(entry catalog.EntityCapabilities, service string) bool {
	for _, s := range entry.Services {
		if s.Service == service {
			return true
		}
	}
	return false
}

// restrictTimestampReads enforces the read restriction for event-style
// devices: a motion sensor, lock or wireless switch exposes several
// entities, and only the timestamp-typed ones carry the "when did it
// happen" answer a read or trigger needs. Other devices pass through
// untouched.
func restrictTimestampReads(caps []catalog.EntityCapabilities) []catalog.EntityCapabilities {
	restricted := make(map[string]bool)
	for _, c := range caps {
		if c.Entity.DeviceID != "" && eventStyleEntity(c.Entity) {
			restricted[c.Entity.DeviceID] = true
		}
	}
	if len(restricted) == 0 {
		return caps
	}

	out := make([]catalog.EntityCapabilities, 0, len(caps))
	for _, c := range caps {
		if restricted[c.Entity.DeviceID] && !c.Entity.HasTimestampState() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func eventStyleEntity(e catalog.Entity) bool {
	switch e.Domain() {
	case "lock", "event":
		return true
	}
	dc, _ := e.Attributes["device_class"].(string)
	switch dc {
	case "motion", "lock", "button":
		return true
	}
	return false
}

func describeEntities(caps []catalog.EntityCapabilities) string {
	var b strings.Builder
	for _, c := range caps {
		fmt.Fprintf(&b, "- %s state=%q", c.Entity.ID, c.Entity.State)
		if dc, ok := c.Entity.Attributes["device_class"].(string); ok {
			fmt.Fprintf(&b, " device_class=%s", dc)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func describeCapabilities(caps []catalog.EntityCapabilities) string {
	var b strings.Builder
	for _, c := range caps {
		fmt.Fprintf(&b, "- %s state=%q\n", c.Entity.ID, c.Entity.State)
		for _, svc := range c.Services {
			fmt.Fprintf(&b, "    %s", svc.Service)
			for _, opt := range svc.Options {
				fmt.Fprintf(&b, " %s=%v", opt.Field, opt.Values)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
