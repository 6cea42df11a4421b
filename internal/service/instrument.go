package service

import (
	"context"
	"time"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
	"github.com/raphaelgruber/hearth-go/internal/metrics"
	"github.com/raphaelgruber/hearth-go/internal/pipeline"
)

// Timed stage decorators feed the metrics collector without the
// pipeline knowing about it.

type TimedClassifier struct {
	Inner     pipeline.ClassifierStage
	Collector *metrics.Collector
}

func (t *TimedClassifier) Classify(ctx context.Context, s *pipeline.Session) pipeline.Intent {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpClassify, time.Since(start)) }()
	return t.Inner.Classify(ctx, s)
}

func (t *TimedClassifier) ClassifyResume(ctx context.Context, s *pipeline.Session) pipeline.ResumeDecision {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpClassify, time.Since(start)) }()
	return t.Inner.ClassifyResume(ctx, s)
}

func (t *TimedClassifier) ClassifyConfirm(ctx context.Context, s *pipeline.Session) bool {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpClassify, time.Since(start)) }()
	return t.Inner.ClassifyConfirm(ctx, s)
}

type TimedResolver struct {
	Inner     pipeline.ResolverStage
	Collector *metrics.Collector
}

func (t *TimedResolver) Resolve(ctx context.Context, s *pipeline.Session, intent pipeline.Intent) (pipeline.StageResult, error) {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpResolve, time.Since(start)) }()
	return t.Inner.Resolve(ctx, s, intent)
}

type TimedExecutor struct {
	Inner     pipeline.ExecutorStage
	Collector *metrics.Collector
}

func (t *TimedExecutor) Execute(ctx context.Context, s *pipeline.Session, result pipeline.StageResult) pipeline.Outcome {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpExecute, time.Since(start)) }()
	return t.Inner.Execute(ctx, s, result)
}

type TimedEvaluator struct {
	Inner     pipeline.EvaluatorStage
	Collector *metrics.Collector
}

func (t *TimedEvaluator) Evaluate(ctx context.Context, s *pipeline.Session, outcome pipeline.Outcome) pipeline.Verdict {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpEvaluate, time.Since(start)) }()
	return t.Inner.Evaluate(ctx, s, outcome)
}

// TimedStore wraps a catalog store, timing each query.
type TimedStore struct {
	Inner     catalog.Store
	Collector *metrics.Collector
}

func (t *TimedStore) ListAreas(ctx context.Context) ([]catalog.Area, error) {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpDBQuery, time.Since(start)) }()
	return t.Inner.ListAreas(ctx)
}

func (t *TimedStore) ListDevices(ctx context.Context, areaIDs []string) ([]catalog.Device, error) {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpDBQuery, time.Since(start)) }()
	return t.Inner.ListDevices(ctx, areaIDs)
}

func (t *TimedStore) ListEntities(ctx context.Context, areaIDs, typeFilter []string) ([]catalog.EntityCapabilities, error) {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpDBQuery, time.Since(start)) }()
	return t.Inner.ListEntities(ctx, areaIDs, typeFilter)
}

func (t *TimedStore) ServiceCatalog(ctx context.Context, domain string) ([]catalog.Service, error) {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpDBQuery, time.Since(start)) }()
	return t.Inner.ServiceCatalog(ctx, domain)
}

// TimedInvoker wraps an action invoker, timing each hub round trip.
type TimedInvoker struct {
	Inner     pipeline.ActionInvoker
	Collector *metrics.Collector
}

func (t *TimedInvoker) InvokeService(ctx context.Context, domain, svc string, payload map[string]any) (string, error) {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpHubCall, time.Since(start)) }()
	return t.Inner.InvokeService(ctx, domain, svc, payload)
}

func (t *TimedInvoker) ReadState(ctx context.Context, entityID string) (pipeline.StateRecord, error) {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpHubCall, time.Since(start)) }()
	return t.Inner.ReadState(ctx, entityID)
}

func (t *TimedInvoker) ReadAllStates(ctx context.Context) ([]pipeline.StateRecord, error) {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpHubCall, time.Since(start)) }()
	return t.Inner.ReadAllStates(ctx)
}

func (t *TimedInvoker) ReadHistory(ctx context.Context, entityIDs []string, from, to time.Time) ([]pipeline.StateRecord, error) {
	start := time.Now()
	defer func() { t.Collector.RecordTiming(metrics.OpHubCall, time.Since(start)) }()
	return t.Inner.ReadHistory(ctx, entityIDs, from, to)
}

// InstrumentStages wraps all four stages of a dependency set.
func InstrumentStages(deps pipeline.Dependencies, collector *metrics.Collector) pipeline.Dependencies {
	deps.Classifier = &TimedClassifier{Inner: deps.Classifier, Collector: collector}
	deps.Resolver = &TimedResolver{Inner: deps.Resolver, Collector: collector}
	deps.Executor = &TimedExecutor{Inner: deps.Executor, Collector: collector}
	deps.Evaluator = &TimedEvaluator{Inner: deps.Evaluator, Collector: collector}
	return deps
}
