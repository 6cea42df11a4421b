package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
)

// scriptedOracle routes on the system prompt so one conversation can
// exercise every stage.
func scriptedOracle(t *testing.T, responses map[string]func(call int) string) *fakeOracle {
	t.Helper()
	counts := make(map[string]int)
	return &fakeOracle{respond: func(system, user string) (string, error) {
		fn, ok := responses[system]
		if !ok {
			t.Fatalf("unexpected oracle call with system prompt: %.60s", system)
		}
		call := counts[system]
		counts[system]++
		return fn(call), nil
	}}
}

func officeLight() []catalog.EntityCapabilities {
	return []catalog.EntityCapabilities{
		{
			Entity: catalog.Entity{ID: "light.office_1", DeviceID: "dev-light", State: "on"},
			Services: []catalog.ResolvedService{
				{Service: "turn_on"},
				{Service: "turn_off"},
			},
		},
	}
}

func newDispatcher(o Oracle, store EntityStore, invoker ActionInvoker, notifier Notifier) *Dispatcher {
	return newDispatcherWith(o, store, invoker, &fakeSink{}, &fakeMedia{}, notifier)
}

func newDispatcherWith(o Oracle, store EntityStore, invoker ActionInvoker, sink AutomationSink, player MediaPlayer, notifier Notifier) *Dispatcher {
	logger := testLogger()
	return NewDispatcher(Dependencies{
		Classifier:   NewClassifier(o, store, logger),
		Resolver:     NewResolver(o, store, logger),
		Executor:     NewExecutor(invoker, sink, &fakeSearcher{answer: "42"}, player, o, 30, logger),
		Evaluator:    NewEvaluator(o, logger),
		Notifier:     notifier,
		Logger:       logger,
		MaxTurnLoops: 8,
	})
}

func TestDispatcher_EndToEndWrite(t *testing.T) {
	o := scriptedOracle(t, map[string]func(int) string{
		classifySystemPrompt: func(int) string {
			return fenced("json", `{"intent": "write", "areas": ["office"], "types": ["light"]}`)
		},
		resolveWriteSystemPrompt: func(int) string {
			return fenced("json", `{"calls": [{"entity_id": "light.office_1", "service": "turn_off"}]}`)
		},
		evaluateSystemPrompt: func(int) string {
			return fenced("json", `{"verdict": "satisfied_done", "message": "The office light is off."}`)
		},
	})
	store := &fakeStore{
		areas:    []catalog.Area{{ID: "office", Name: "Office"}},
		entities: officeLight(),
	}
	invoker := &fakeInvoker{}
	notifier := &fakeNotifier{}
	d := newDispatcher(o, store, invoker, notifier)

	d.HandleUserTurnSync(context.Background(), "speaker-1", "turn off the office light")

	if len(invoker.calls) != 1 {
		t.Fatalf("invoked %d calls, want 1", len(invoker.calls))
	}
	call := invoker.calls[0]
	if call.Domain != "light" || call.Service != "turn_off" || call.Payload["entity_id"] != "light.office_1" {
		t.Errorf("invoked %+v", call)
	}

	spoken := notifier.Spoken()
	if len(spoken) != 1 || spoken[0] != "The office light is off." {
		t.Errorf("spoken = %v", spoken)
	}

	s := d.Session("speaker-1")
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle after terminal verdict", s.State())
	}
	if len(s.History()) != 0 {
		t.Errorf("history = %v, terminal verdict must wipe it", s.History())
	}
}

func TestDispatcher_AmbiguityPausesAndPreservesScope(t *testing.T) {
	o := scriptedOracle(t, map[string]func(int) string{
		classifySystemPrompt: func(int) string {
			return fenced("json", `{"intent": "write", "areas": [], "types": ["light"]}`)
		},
		resolveWriteSystemPrompt: func(int) string {
			return fenced("json", `{"calls": [], "question": "The office light or the hallway light?"}`)
		},
	})
	store := &fakeStore{entities: officeLight()}
	notifier := &fakeNotifier{}
	d := newDispatcher(o, store, &fakeInvoker{}, notifier)

	d.HandleUserTurnSync(context.Background(), "speaker-1", "turn off the light")

	s := d.Session("speaker-1")
	if s.State() != StateAwaitingUser {
		t.Fatalf("state = %s, want awaiting_user", s.State())
	}

	_, types := s.Scope()
	if len(types) == 0 || types[0] != "light" {
		t.Errorf("scope types = %v, must survive the pause", types)
	}
	if s.Intent() == nil {
		t.Error("intent must stay cached across the pause")
	}
	if len(s.History()) == 0 {
		t.Error("history must survive the pause")
	}

	spoken := notifier.Spoken()
	if len(spoken) != 1 || !strings.Contains(spoken[0], "hallway") {
		t.Errorf("spoken = %v, want the clarifying question", spoken)
	}
}

func TestDispatcher_ClarifyingAnswerResumesResolution(t *testing.T) {
	o := scriptedOracle(t, map[string]func(int) string{
		classifySystemPrompt: func(int) string {
			return fenced("json", `{"intent": "write", "areas": [], "types": ["light"]}`)
		},
		resumeSystemPrompt: func(int) string {
			return fenced("json", `{"decision": "clarify"}`)
		},
		resolveWriteSystemPrompt: func(call int) string {
			if call == 0 {
				return fenced("json", `{"calls": [], "question": "Which light?"}`)
			}
			return fenced("json", `{"calls": [{"entity_id": "light.office_1", "service": "turn_off"}]}`)
		},
		evaluateSystemPrompt: func(int) string {
			return fenced("json", `{"verdict": "satisfied_done", "message": "Done, light off."}`)
		},
	})
	store := &fakeStore{entities: officeLight()}
	invoker := &fakeInvoker{}
	d := newDispatcher(o, store, invoker, &fakeNotifier{})

	ctx := context.Background()
	d.HandleUserTurnSync(ctx, "speaker-1", "turn off the light")
	d.HandleUserTurnSync(ctx, "speaker-1", "the office one")

	if len(invoker.calls) != 1 {
		t.Fatalf("invoked %d calls, want 1 after clarification", len(invoker.calls))
	}
	if invoker.calls[0].Payload["entity_id"] != "light.office_1" {
		t.Errorf("invoked %+v", invoker.calls[0])
	}
	if store.listCalls != 1 {
		t.Errorf("store consulted %d times, want 1 (clarify resumes with cached scope)", store.listCalls)
	}
}

func TestDispatcher_SmallTalkAsksForMore(t *testing.T) {
	o := scriptedOracle(t, map[string]func(int) string{
		classifySystemPrompt: func(int) string {
			return fenced("json", `{"intent": "small_talk"}`)
		},
		smallTalkSystemPrompt: func(int) string {
			return "Doing great, thanks for asking!"
		},
		evaluateSystemPrompt: func(int) string {
			return fenced("json", `{"verdict": "satisfied_more", "message": "Doing great, thanks for asking!"}`)
		},
	})
	notifier := &fakeNotifier{}
	d := newDispatcher(o, &fakeStore{}, &fakeInvoker{}, notifier)

	d.HandleUserTurnSync(context.Background(), "speaker-1", "how are you?")

	s := d.Session("speaker-1")
	if s.State() != StateAwaitingUser {
		t.Errorf("state = %s, want awaiting_user after satisfied_more", s.State())
	}
	if len(s.History()) == 0 {
		t.Error("satisfied_more must keep the conversation")
	}
	if spoken := notifier.Spoken(); len(spoken) != 1 {
		t.Errorf("spoken = %v", spoken)
	}
}

// scripted stage fakes for transition-table tests

type stubClassifier struct{ intent Intent }

func (s *stubClassifier) Classify(context.Context, *Session) Intent { return s.intent }
func (s *stubClassifier) ClassifyResume(context.Context, *Session) ResumeDecision {
	return ResumeNewRequest
}
func (s *stubClassifier) ClassifyConfirm(context.Context, *Session) bool { return false }

type stubResolver struct{ result StageResult }

func (s *stubResolver) Resolve(context.Context, *Session, Intent) (StageResult, error) {
	return s.result, nil
}

type stubExecutor struct{ outcome Outcome }

func (s *stubExecutor) Execute(context.Context, *Session, StageResult) Outcome { return s.outcome }

type stubEvaluator struct{ verdicts []Verdict }

func (s *stubEvaluator) Evaluate(context.Context, *Session, Outcome) Verdict {
	v := s.verdicts[0]
	if len(s.verdicts) > 1 {
		s.verdicts = s.verdicts[1:]
	}
	return v
}

func stubDispatcher(verdicts ...Verdict) (*Dispatcher, *fakeNotifier) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(Dependencies{
		Classifier:   &stubClassifier{intent: Intent{Kind: IntentWrite}},
		Resolver:     &stubResolver{result: StageResult{Kind: KindWriteState, Calls: []WriteCall{{EntityID: "light.a", Service: "turn_on"}}}},
		Executor:     &stubExecutor{outcome: Outcome{Result: StageResult{Kind: KindWriteState}}},
		Evaluator:    &stubEvaluator{verdicts: verdicts},
		Notifier:     notifier,
		Logger:       testLogger(),
		MaxTurnLoops: 4,
	})
	return d, notifier
}

func TestDispatcher_UnknownVerdictNeverCrashes(t *testing.T) {
	d, notifier := stubDispatcher(Verdict{Code: VerdictCode(42)})

	d.HandleUserTurnSync(context.Background(), "s1", "do something")

	if spoken := notifier.Spoken(); len(spoken) != 1 {
		t.Fatalf("spoken = %v, unknown verdict must apologize", spoken)
	}
	if state := d.Session("s1").State(); state != StateIdle {
		t.Errorf("state = %s, want idle", state)
	}
}

func TestDispatcher_LoopCeilingGivesUp(t *testing.T) {
	d, notifier := stubDispatcher(Verdict{Code: VerdictLoopExecute})

	d.HandleUserTurnSync(context.Background(), "s1", "do something")

	spoken := notifier.Spoken()
	if len(spoken) != 1 || !strings.Contains(spoken[0], "couldn't") {
		t.Fatalf("spoken = %v, ceiling must end with an apology", spoken)
	}
	if state := d.Session("s1").State(); state != StateIdle {
		t.Errorf("state = %s, want idle after giving up", state)
	}
}

func TestDispatcher_GiveUpWipesHistory(t *testing.T) {
	d, _ := stubDispatcher(Verdict{Code: VerdictGiveUp, Message: "Sorry, that device is offline."})

	d.HandleUserTurnSync(context.Background(), "s1", "do something")

	s := d.Session("s1")
	if len(s.History()) != 0 {
		t.Errorf("history = %v, give_up is terminal and must wipe it", s.History())
	}
}

func TestDispatcher_MediaIntentStartsPlayback(t *testing.T) {
	o := scriptedOracle(t, map[string]func(int) string{
		classifySystemPrompt: func(int) string {
			return fenced("json", `{"intent": "media", "query": "some quiet jazz"}`)
		},
		evaluateSystemPrompt: func(int) string {
			return fenced("json", `{"verdict": "satisfied_done", "message": "Putting on some quiet jazz."}`)
		},
	})
	player := &fakeMedia{reply: "Putting on some quiet jazz."}
	notifier := &fakeNotifier{}
	d := newDispatcherWith(o, &fakeStore{}, &fakeInvoker{}, &fakeSink{}, player, notifier)

	d.HandleUserTurnSync(context.Background(), "speaker-1", "play some quiet jazz")

	if len(player.requests) != 1 || player.requests[0] != "some quiet jazz" {
		t.Fatalf("playback requests = %v, want the classified query", player.requests)
	}
	if spoken := notifier.Spoken(); len(spoken) != 1 {
		t.Errorf("spoken = %v", spoken)
	}
}

func TestDispatcher_ConfirmedAutomationGetsEnabled(t *testing.T) {
	o := scriptedOracle(t, map[string]func(int) string{
		classifySystemPrompt: func(int) string {
			return fenced("json", `{"intent": "automation", "types": ["light"]}`)
		},
		resolveAutomationSystemPrompt: func(int) string {
			return fenced("yaml", "alias: night light\ntrigger: []\naction: []")
		},
		evaluateSystemPrompt: func(int) string {
			return fenced("json", `{"verdict": "ask_user", "message": "I created it switched off. Should I enable it?"}`)
		},
		confirmSystemPrompt: func(int) string {
			return fenced("json", `{"confirmed": true}`)
		},
	})
	store := &fakeStore{entities: officeLight()}
	sink := &fakeSink{}
	notifier := &fakeNotifier{}
	d := newDispatcherWith(o, store, &fakeInvoker{}, sink, &fakeMedia{}, notifier)

	ctx := context.Background()
	d.HandleUserTurnSync(ctx, "speaker-1", "turn on the light when I get home")
	d.HandleUserTurnSync(ctx, "speaker-1", "yes please")

	if len(sink.published) != 1 {
		t.Fatalf("published %d drafts, want 1", len(sink.published))
	}
	if len(sink.enabled) != 1 || sink.enabled[0] != "auto-1" {
		t.Fatalf("enabled = %v, want the published automation", sink.enabled)
	}

	s := d.Session("speaker-1")
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle after enabling", s.State())
	}
	if spoken := notifier.Spoken(); len(spoken) != 2 {
		t.Errorf("spoken = %v, want the question and the confirmation", spoken)
	}
}

func TestDispatcher_DeclinedAutomationStaysOff(t *testing.T) {
	o := scriptedOracle(t, map[string]func(int) string{
		classifySystemPrompt: func(int) string {
			return fenced("json", `{"intent": "automation", "types": ["light"]}`)
		},
		resolveAutomationSystemPrompt: func(int) string {
			return fenced("yaml", "alias: night light\ntrigger: []\naction: []")
		},
		evaluateSystemPrompt: func(int) string {
			return fenced("json", `{"verdict": "ask_user", "message": "Should I enable it?"}`)
		},
		confirmSystemPrompt: func(int) string {
			return fenced("json", `{"confirmed": false}`)
		},
	})
	sink := &fakeSink{}
	d := newDispatcherWith(o, &fakeStore{entities: officeLight()}, &fakeInvoker{}, sink, &fakeMedia{}, &fakeNotifier{})

	ctx := context.Background()
	d.HandleUserTurnSync(ctx, "speaker-1", "turn on the light when I get home")
	d.HandleUserTurnSync(ctx, "speaker-1", "no, leave it")

	if len(sink.enabled) != 0 {
		t.Fatalf("enabled = %v, a declined automation must stay off", sink.enabled)
	}
	if state := d.Session("speaker-1").State(); state != StateIdle {
		t.Errorf("state = %s, want idle after declining", state)
	}
}

func TestDispatcher_CatalogOutageApologyNamesCatalog(t *testing.T) {
	o := scriptedOracle(t, map[string]func(int) string{
		classifySystemPrompt: func(int) string {
			return fenced("json", `{"intent": "write", "types": ["light"]}`)
		},
	})
	store := &fakeStore{err: fmt.Errorf("connection reset")}
	notifier := &fakeNotifier{}
	d := newDispatcher(o, store, &fakeInvoker{}, notifier)

	d.HandleUserTurnSync(context.Background(), "speaker-1", "turn off the light")

	spoken := notifier.Spoken()
	if len(spoken) != 1 {
		t.Fatalf("spoken = %v", spoken)
	}
	if strings.Contains(spoken[0], "hub") {
		t.Errorf("spoken = %q, a catalog failure must not blame the hub", spoken[0])
	}
	if !strings.Contains(spoken[0], "devices") {
		t.Errorf("spoken = %q, want the catalog excuse", spoken[0])
	}
}

func TestDispatcher_SessionsAreIndependent(t *testing.T) {
	d, _ := stubDispatcher(Verdict{Code: VerdictSatisfiedMore, Message: "done"})

	ctx := context.Background()
	d.HandleUserTurnSync(ctx, "kitchen", "do something")
	d.HandleUserTurnSync(ctx, "bedroom", "do something else")

	if d.Session("kitchen") == d.Session("bedroom") {
		t.Fatal("sessions must not be shared")
	}
	if len(d.Session("kitchen").History()) != len(d.Session("bedroom").History()) {
		t.Error("each session owns its own history")
	}
}
