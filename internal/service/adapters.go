// Package service wires the hub and the catalog cache into the
// conversation pipeline and keeps the cache in sync with the hub.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/hearth-go/internal/hub"
	"github.com/raphaelgruber/hearth-go/internal/pipeline"
)

// hubConn is the slice of *hub.Client the adapters need.
type hubConn interface {
	CallService(ctx context.Context, domain, service string, payload map[string]any) ([]hub.State, error)
	GetState(ctx context.Context, entityID string) (*hub.State, error)
	GetStates(ctx context.Context) ([]hub.State, error)
	History(ctx context.Context, opts hub.HistoryOptions) ([][]hub.State, error)
	PublishAutomation(ctx context.Context, auto *hub.Automation, grace time.Duration) (string, error)
	EnableAutomation(ctx context.Context, id string) error
}

// Invoker adapts the hub client to the pipeline's action surface.
type Invoker struct {
	hub hubConn
}

func NewInvoker(h hubConn) *Invoker {
	return &Invoker{hub: h}
}

func (i *Invoker) InvokeService(ctx context.Context, domain, service string, payload map[string]any) (string, error) {
	changed, err := i.hub.CallService(ctx, domain, service, payload)
	if err != nil {
		return "", err
	}

	if len(changed) == 0 {
		return "ok", nil
	}
	parts := make([]string, 0, len(changed))
	for _, s := range changed {
		parts = append(parts, fmt.Sprintf("%s is now %s", s.EntityID, s.State))
	}
	return strings.Join(parts, ", "), nil
}

func (i *Invoker) ReadState(ctx context.Context, entityID string) (pipeline.StateRecord, error) {
	state, err := i.hub.GetState(ctx, entityID)
	if err != nil {
		return pipeline.StateRecord{}, err
	}
	return toRecord(*state), nil
}

func (i *Invoker) ReadAllStates(ctx context.Context) ([]pipeline.StateRecord, error) {
	states, err := i.hub.GetStates(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]pipeline.StateRecord, 0, len(states))
	for _, s := range states {
		records = append(records, toRecord(s))
	}
	return records, nil
}

func (i *Invoker) ReadHistory(ctx context.Context, entityIDs []string, start, end time.Time) ([]pipeline.StateRecord, error) {
	series, err := i.hub.History(ctx, hub.HistoryOptions{
		EntityIDs: entityIDs,
		Start:     start,
		End:       end,
		Minimal:   true,
	})
	if err != nil {
		return nil, err
	}

	var records []pipeline.StateRecord
	for idx, states := range series {
		for _, s := range states {
			record := toRecord(s)
			// minimal responses omit the entity id on all but the
			// first sample of a series
			if record.EntityID == "" && len(states) > 0 {
				record.EntityID = states[0].EntityID
			}
			if record.EntityID == "" && idx < len(entityIDs) {
				record.EntityID = entityIDs[idx]
			}
			records = append(records, record)
		}
	}
	return records, nil
}

func toRecord(s hub.State) pipeline.StateRecord {
	when := s.LastChanged
	if s.LastUpdated.After(when) {
		when = s.LastUpdated
	}
	return pipeline.StateRecord{
		EntityID: s.EntityID,
		State:    s.State,
		When:     when,
	}
}

// AutomationPublisher adapts the hub automation API to the pipeline's
// sink. Drafts arrive as YAML text straight from the model.
type AutomationPublisher struct {
	hub   hubConn
	grace time.Duration
}

func NewAutomationPublisher(h hubConn, grace time.Duration) *AutomationPublisher {
	return &AutomationPublisher{hub: h, grace: grace}
}

func (p *AutomationPublisher) Publish(ctx context.Context, draft string) (string, error) {
	auto, err := hub.ParseAutomation(draft)
	if err != nil {
		return "", err
	}
	return p.hub.PublishAutomation(ctx, auto, p.grace)
}

func (p *AutomationPublisher) Enable(ctx context.Context, id string) error {
	return p.hub.EnableAutomation(ctx, id)
}
