package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOracle dispatches on the system prompt so one fake can script a
// whole conversation across stages.
type fakeOracle struct {
	respond func(system, user string) (string, error)
}

func (f *fakeOracle) GenerateWithSystem(_ context.Context, system, user string) (string, error) {
	return f.respond(system, user)
}

type fakeStore struct {
	areas     []catalog.Area
	entities  []catalog.EntityCapabilities
	listCalls int
	err       error
}

func (f *fakeStore) ListAreas(context.Context) ([]catalog.Area, error) {
	return f.areas, nil
}

func (f *fakeStore) ListDevices(context.Context, []string) ([]catalog.Device, error) {
	return nil, nil
}

func (f *fakeStore) ListEntities(context.Context, []string, []string) ([]catalog.EntityCapabilities, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entities, nil
}

func (f *fakeStore) ServiceCatalog(context.Context, string) ([]catalog.Service, error) {
	return nil, nil
}

type invokedCall struct {
	Domain  string
	Service string
	Payload map[string]any
}

type fakeInvoker struct {
	mu        sync.Mutex
	calls     []invokedCall
	failOn    map[string]error // keyed by service name
	states    map[string]StateRecord
	stateErr  error
	bulk      []StateRecord
	bulkCalls int
	readCalls int
	history   []StateRecord
}

func (f *fakeInvoker) InvokeService(_ context.Context, domain, service string, payload map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invokedCall{Domain: domain, Service: service, Payload: payload})
	if err, ok := f.failOn[service]; ok {
		return "", err
	}
	return "ok", nil
}

func (f *fakeInvoker) ReadState(_ context.Context, entityID string) (StateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls++
	if f.stateErr != nil {
		return StateRecord{}, f.stateErr
	}
	rec, ok := f.states[entityID]
	if !ok {
		return StateRecord{}, fmt.Errorf("unknown entity %s", entityID)
	}
	return rec, nil
}

func (f *fakeInvoker) ReadAllStates(context.Context) ([]StateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	return f.bulk, nil
}

func (f *fakeInvoker) ReadHistory(context.Context, []string, time.Time, time.Time) ([]StateRecord, error) {
	return f.history, nil
}

type fakeSink struct {
	published []string
	enabled   []string
	err       error
	enableErr error
}

func (f *fakeSink) Publish(_ context.Context, draft string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, draft)
	return fmt.Sprintf("auto-%d", len(f.published)), nil
}

func (f *fakeSink) Enable(_ context.Context, id string) error {
	if f.enableErr != nil {
		return f.enableErr
	}
	f.enabled = append(f.enabled, id)
	return nil
}

type fakeSearcher struct {
	answer  string
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.answer, f.err
}

type fakeMedia struct {
	requests []string
	reply    string
	err      error
}

func (f *fakeMedia) Play(_ context.Context, request string) (string, error) {
	f.requests = append(f.requests, request)
	return f.reply, f.err
}

type fakeNotifier struct {
	mu     sync.Mutex
	spoken []string
}

func (f *fakeNotifier) Speak(_ context.Context, text string) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
}

func (f *fakeNotifier) Spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func capsFor(entities ...catalog.Entity) []catalog.EntityCapabilities {
	caps := make([]catalog.EntityCapabilities, len(entities))
	for i, e := range entities {
		caps[i] = catalog.EntityCapabilities{Entity: e}
	}
	return caps
}

func fenced(lang, body string) string {
	return "```" + lang + "\n" + body + "\n```"
}
