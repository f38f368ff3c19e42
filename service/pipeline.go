package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tieubaoca/citebot/observability"
	"github.com/tieubaoca/citebot/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Observer is told about every status change of a run.
type Observer func(runID string, status types.PipelineStatus)

type step struct {
	stage  Stage
	target types.PipelineStatus
	kind   ErrorKind
}

// Pipeline runs retrieval, drafting and verification in strict sequence.
// It holds no per-run state and is safe for concurrent runs when its
// retriever and generators are.
type Pipeline struct {
	steps   []step
	metrics *observability.PipelineMetrics
	tracer  trace.Tracer
	newID   func() string
}

type PipelineOption func(*Pipeline)

func WithMetrics(m *observability.PipelineMetrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

func WithTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) { p.tracer = t }
}

// WithRunIDs replaces the uuid run id generator.
func WithRunIDs(newID func() string) PipelineOption {
	return func(p *Pipeline) { p.newID = newID }
}

// NewPipeline wires the three stages. Each stage gets its own collaborator so
// the drafting and verification models can differ.
func NewPipeline(retrieval *RetrievalStage, drafting *DraftingStage, verification *VerificationStage, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		steps: []step{
			{stage: retrieval, target: types.StatusRetrieved, kind: KindRetrieval},
			{stage: drafting, target: types.StatusDrafted, kind: KindDraftGeneration},
			{stage: verification, target: types.StatusVerified, kind: KindVerification},
		},
		tracer: otel.Tracer("citebot.service.pipeline"),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run answers question. On failure the returned state is in StatusFailed and
// the error is the failing stage's *StageError, unchanged.
func (p *Pipeline) Run(ctx context.Context, question string, observers ...Observer) (*types.PipelineState, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	state := types.NewPipelineState(p.newID(), question)
	logger := zap.L().With(zap.String("run_id", state.RunID))
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("run_id", state.RunID)))
	defer span.End()

	runStart := time.Now()
	logger.Info("pipeline: run started")
	notify(observers, state)

	for _, st := range p.steps {
		if err := p.runStep(ctx, logger, st, state); err != nil {
			// Fail only errors on a terminal state, which cannot happen here.
			_ = state.Fail(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.metrics.RecordRun(string(types.StatusFailed))
			notify(observers, state)
			logger.Error("pipeline: run failed",
				zap.String("stage", st.stage.Name()),
				zap.Error(err),
				zap.Int64("duration_ms", time.Since(runStart).Milliseconds()))
			return state, err
		}
		notify(observers, state)
	}

	report := CheckCitations(state.Answer(), state.Citations())
	p.metrics.RecordCitations(state.Citations().Len(), len(report.Referenced), len(report.Dangling), len(report.Unused))
	if !report.Consistent() {
		logger.Warn("pipeline: answer cites unknown identifiers", zap.Strings("dangling", report.Dangling))
	}

	p.metrics.RecordRun(string(types.StatusVerified))
	span.SetAttributes(attribute.Int("citations", state.Citations().Len()))
	logger.Info("pipeline: run finished",
		zap.Int("citations", state.Citations().Len()),
		zap.Strings("referenced", report.Referenced),
		zap.Int64("duration_ms", time.Since(runStart).Milliseconds()))
	return state, nil
}

func (p *Pipeline) runStep(ctx context.Context, logger *zap.Logger, st step, state *types.PipelineState) error {
	name := st.stage.Name()
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := st.stage.Run(ctx, state)
	if err == nil {
		err = state.Advance(st.target)
	}
	if err != nil {
		if _, ok := KindOf(err); !ok {
			err = &StageError{Kind: st.kind, Stage: name, Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.RecordStage(name, "error", time.Since(start))
		return err
	}

	p.metrics.RecordStage(name, "ok", time.Since(start))
	logger.Info("pipeline: stage finished",
		zap.String("stage", name),
		zap.String("status", string(state.Status())),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}

func notify(observers []Observer, state *types.PipelineState) {
	for _, o := range observers {
		o(state.RunID, state.Status())
	}
}

// Ask runs the pipeline and assembles the external response.
func (p *Pipeline) Ask(ctx context.Context, question string, observers ...Observer) (*types.QAResponse, error) {
	state, err := p.Run(ctx, question, observers...)
	if err != nil {
		return nil, err
	}
	return AssembleResponse(state)
}
