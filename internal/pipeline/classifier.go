package pipeline

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
	"github.com/raphaelgruber/hearth-go/internal/oracle"
)

// IntentKind discriminates what the user's turn asks for.
type IntentKind int

const (
	IntentSmallTalk IntentKind = iota
	IntentMedia
	IntentWebSearch
	IntentReadLive
	IntentReadHistory
	IntentWrite
	IntentAutomation
	IntentAutomationInit
	IntentNeedMoreInput
)

func (k IntentKind) String() string {
	switch k {
	case IntentSmallTalk:
		return "small_talk"
	case IntentMedia:
		return "media"
	case IntentWebSearch:
		return "web_search"
	case IntentReadLive:
		return "read_live"
	case IntentReadHistory:
		return "read_history"
	case IntentWrite:
		return "write"
	case IntentAutomation:
		return "automation"
	case IntentAutomationInit:
		return "automation_init"
	case IntentNeedMoreInput:
		return "need_more_info"
	default:
		return "unknown"
	}
}

// Intent is the classifier's structured output: what to do, narrowed
// to an area and entity-type scope.
type Intent struct {
	Kind     IntentKind
	Areas    []string
	Types    []string
	Question string
	Query    string
}

// Classifier turns conversation context into an Intent.
type Classifier struct {
	oracle Oracle
	store  EntityStore
	logger *slog.Logger
}

// NewClassifier creates a classifier stage.
func NewClassifier(o Oracle, store EntityStore, logger *slog.Logger) *Classifier {
	return &Classifier{oracle: o, store: store, logger: logger}
}

type intentPayload struct {
	Intent   string   `json:"intent"`
	Areas    []string `json:"areas"`
	Types    []string `json:"types"`
	Question string   `json:"question"`
	Query    string   `json:"query"`
}

var intentKinds = map[string]IntentKind{
	"small_talk":      IntentSmallTalk,
	"media":           IntentMedia,
	"web_search":      IntentWebSearch,
	"read_live":       IntentReadLive,
	"read_history":    IntentReadHistory,
	"write":           IntentWrite,
	"automation":      IntentAutomation,
	"automation_init": IntentAutomationInit,
	"need_more_info":  IntentNeedMoreInput,
}

// Classify inspects the session history and produces an intent. A
// malformed oracle response degrades to small talk; classification
// never fails the turn.
func (c *Classifier) Classify(ctx context.Context, session *Session) Intent {
	prompt := "Known areas:\n"
	areas, err := c.store.ListAreas(ctx)
	if err != nil {
		c.logger.Warn("area list unavailable for classification", "error", err)
	}
	for _, a := range areas {
		prompt += "  " + a.ID + " (" + a.Name + ")\n"
	}
	prompt += "\nConversation:\n" + session.Transcript()

	raw, err := c.oracle.GenerateWithSystem(ctx, classifySystemPrompt, prompt)
	if err != nil {
		c.logger.Error("classification call failed", "session", session.ID, "error", err)
		return Intent{Kind: IntentSmallTalk}
	}

	var payload intentPayload
	if err := oracle.DecodeJSON(raw, &payload); err != nil {
		c.logger.Warn("classification output malformed, treating as small talk",
			"session", session.ID, "error", err)
		return Intent{Kind: IntentSmallTalk}
	}

	kind, ok := intentKinds[payload.Intent]
	if !ok {
		c.logger.Warn("classification emitted unknown intent, treating as small talk",
			"session", session.ID, "intent", payload.Intent)
		return Intent{Kind: IntentSmallTalk}
	}

	return Intent{
		Kind:     kind,
		Areas:    payload.Areas,
		Types:    normalizeTypes(payload.Types),
		Question: payload.Question,
		Query:    payload.Query,
	}
}

// ResumeDecision says how to treat a user turn arriving while the
// session awaits input.
type ResumeDecision int

const (
	// ResumeClarify continues the pending request with cached scope.
	ResumeClarify ResumeDecision = iota
	// ResumeNewRequest abandons the pending request and re-classifies.
	ResumeNewRequest
)

// ClassifyResume decides whether an answer to a clarifying question
// continues the pending request or opens a new one. Malformed output
// defaults to treating it as a new request.
func (c *Classifier) ClassifyResume(ctx context.Context, session *Session) ResumeDecision {
	raw, err := c.oracle.GenerateWithSystem(ctx, resumeSystemPrompt, session.Transcript())
	if err != nil {
		c.logger.Warn("resume classification failed, re-classifying", "session", session.ID, "error", err)
		return ResumeNewRequest
	}

	var payload struct {
		Decision string `json:"decision"`
	}
	if err := oracle.DecodeJSON(raw, &payload); err != nil || payload.Decision != "clarify" {
		return ResumeNewRequest
	}
	return ResumeClarify
}

// ClassifyConfirm judges whether the user's latest turn approves the
// pending go-ahead question. Anything the model cannot read as a clear
// yes counts as a no; enabling an automation the user declined is the
// worse failure mode.
func (c *Classifier) ClassifyConfirm(ctx context.Context, session *Session) bool {
	raw, err := c.oracle.GenerateWithSystem(ctx, confirmSystemPrompt, session.Transcript())
	if err != nil {
		c.logger.Warn("confirmation classification failed, treating as declined",
			"session", session.ID, "error", err)
		return false
	}

	var payload struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := oracle.DecodeJSON(raw, &payload); err != nil {
		return false
	}
	return payload.Confirmed
}

// typeCompanions pairs entity types that report through each other.
// Sensor-class devices expose their readings as binary_sensor entities
// and switch modules often register as lights, so scoping one without
// the other misses half the device.
var typeCompanions = map[string]string{
	"sensor":        "binary_sensor",
	"binary_sensor": "sensor",
	"switch":        "light",
	"light":         "switch",
}

// normalizeTypes drops unknown tags and adds companion types. Applied
// unconditionally after classification.
func normalizeTypes(types []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(t string) {
		if !seen[t] && catalog.KnownDomain(t) {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range types {
		add(t)
		if companion, ok := typeCompanions[t]; ok {
			add(companion)
		}
	}
	return out
}
