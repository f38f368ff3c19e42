package service

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tieubaoca/citebot/types"
)

const (
	stageRetrieval    = "retrieval"
	stageDrafting     = "drafting"
	stageVerification = "verification"
)

// Stage is one step of a pipeline run. A stage reads the state fields it
// needs and writes only the fields it owns; the pipeline advances the status.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *types.PipelineState) error
}

// RetrievalStage writes context, citations and raw passages.
type RetrievalStage struct {
	retriever Retriever
	limit     int
}

func NewRetrievalStage(retriever Retriever, limit int) *RetrievalStage {
	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}
	return &RetrievalStage{retriever: retriever, limit: limit}
}

func (s *RetrievalStage) Name() string { return stageRetrieval }

func (s *RetrievalStage) Run(ctx context.Context, state *types.PipelineState) error {
	passages, err := s.retriever.Search(ctx, state.Question(), s.limit)
	if err != nil {
		return &StageError{Kind: KindRetrieval, Stage: stageRetrieval, Err: err}
	}
	text, citations := SerializeChunksWithCitations(passages)
	if err := state.SetRetrieval(text, citations, passages); err != nil {
		return &StageError{Kind: KindRetrieval, Stage: stageRetrieval, Err: err}
	}
	return nil
}

// DraftingStage writes the draft answer.
type DraftingStage struct {
	generator Generator
}

func NewDraftingStage(generator Generator) *DraftingStage {
	return &DraftingStage{generator: generator}
}

func (s *DraftingStage) Name() string { return stageDrafting }

func (s *DraftingStage) Run(ctx context.Context, state *types.PipelineState) error {
	draft, err := s.generator.Generate(ctx, SummarizationSystemPrompt, BuildDraftPrompt(state.Question(), state.Context()))
	if err != nil {
		return &StageError{Kind: KindDraftGeneration, Stage: stageDrafting, Err: eris.Wrap(err, "generate draft")}
	}
	if err := state.SetDraftAnswer(draft); err != nil {
		return &StageError{Kind: KindDraftGeneration, Stage: stageDrafting, Err: err}
	}
	return nil
}

// VerificationStage writes the final answer. With strict set, an answer that
// cites an identifier missing from the citation map fails the run.
type VerificationStage struct {
	generator Generator
	strict    bool
}

func NewVerificationStage(generator Generator, strict bool) *VerificationStage {
	return &VerificationStage{generator: generator, strict: strict}
}

func (s *VerificationStage) Name() string { return stageVerification }

func (s *VerificationStage) Run(ctx context.Context, state *types.PipelineState) error {
	prompt := BuildVerificationPrompt(state.Question(), state.Context(), state.DraftAnswer())
	answer, err := s.generator.Generate(ctx, VerificationSystemPrompt, prompt)
	if err != nil {
		return &StageError{Kind: KindVerification, Stage: stageVerification, Err: eris.Wrap(err, "verify draft")}
	}
	if s.strict {
		if err := ValidateCitations(answer, state.Citations()); err != nil {
			return err
		}
	}
	if err := state.SetAnswer(answer); err != nil {
		return &StageError{Kind: KindVerification, Stage: stageVerification, Err: err}
	}
	return nil
}
