package types

import (
	"errors"
	"fmt"
)

type PipelineStatus string

const (
	StatusInitialized PipelineStatus = "initialized"
	StatusRetrieved   PipelineStatus = "retrieved"
	StatusDrafted     PipelineStatus = "drafted"
	StatusVerified    PipelineStatus = "verified"
	StatusFailed      PipelineStatus = "failed"
)

var (
	ErrFieldAlreadyWritten = errors.New("pipeline state field already written")
	ErrInvalidTransition   = errors.New("invalid pipeline transition")
)

// next is the only forward move allowed from each non-terminal status.
var next = map[PipelineStatus]PipelineStatus{
	StatusInitialized: StatusRetrieved,
	StatusRetrieved:   StatusDrafted,
	StatusDrafted:     StatusVerified,
}

// PipelineState is threaded through the retrieval, drafting and verification
// stages of one run. Every stage-owned field has exactly one writer and can be
// written once; readers get copies.
type PipelineState struct {
	RunID    string
	question string
	status   PipelineStatus
	failure  error

	context     string
	citations   *CitationMap
	rawPassages []Passage
	retrieved   bool

	draftAnswer string
	drafted     bool

	answer   string
	answered bool
}

func NewPipelineState(runID, question string) *PipelineState {
	return &PipelineState{
		RunID:    runID,
		question: question,
		status:   StatusInitialized,
	}
}

func (s *PipelineState) Question() string       { return s.question }
func (s *PipelineState) Status() PipelineStatus { return s.status }
func (s *PipelineState) Context() string        { return s.context }
func (s *PipelineState) DraftAnswer() string    { return s.draftAnswer }
func (s *PipelineState) Answer() string         { return s.answer }

// Failure is the error that moved the run to StatusFailed, if any.
func (s *PipelineState) Failure() error { return s.failure }

func (s *PipelineState) Citations() *CitationMap { return s.citations.Clone() }

func (s *PipelineState) RawPassages() []Passage {
	if s.rawPassages == nil {
		return nil
	}
	out := make([]Passage, len(s.rawPassages))
	copy(out, s.rawPassages)
	return out
}

// SetRetrieval is written by the retrieval stage only.
func (s *PipelineState) SetRetrieval(context string, citations *CitationMap, passages []Passage) error {
	if s.retrieved {
		return fmt.Errorf("%w: context", ErrFieldAlreadyWritten)
	}
	s.context = context
	s.citations = citations.Clone()
	s.rawPassages = make([]Passage, len(passages))
	copy(s.rawPassages, passages)
	s.retrieved = true
	return nil
}

// SetDraftAnswer is written by the drafting stage only.
func (s *PipelineState) SetDraftAnswer(draft string) error {
	if s.drafted {
		return fmt.Errorf("%w: draft_answer", ErrFieldAlreadyWritten)
	}
	s.draftAnswer = draft
	s.drafted = true
	return nil
}

// SetAnswer is written by the verification stage only.
func (s *PipelineState) SetAnswer(answer string) error {
	if s.answered {
		return fmt.Errorf("%w: answer", ErrFieldAlreadyWritten)
	}
	s.answer = answer
	s.answered = true
	return nil
}

// Advance moves the run one step forward. The target must be the direct
// successor of the current status and the fields it implies must be written.
func (s *PipelineState) Advance(to PipelineStatus) error {
	want, ok := next[s.status]
	if !ok || want != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
	}
	switch to {
	case StatusRetrieved:
		ok = s.retrieved
	case StatusDrafted:
		ok = s.drafted
	case StatusVerified:
		ok = s.answered
	}
	if !ok {
		return fmt.Errorf("%w: %s reached without its output", ErrInvalidTransition, to)
	}
	s.status = to
	return nil
}

// Fail moves a non-terminal run to StatusFailed.
func (s *PipelineState) Fail(err error) error {
	if s.status == StatusVerified || s.status == StatusFailed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, StatusFailed)
	}
	s.status = StatusFailed
	s.failure = err
	return nil
}

func (s *PipelineState) Terminal() bool {
	return s.status == StatusVerified || s.status == StatusFailed
}
