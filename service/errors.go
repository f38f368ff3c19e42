package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a pipeline run failed.
type ErrorKind string

const (
	KindRetrieval         ErrorKind = "RetrievalFailure"
	KindDraftGeneration   ErrorKind = "DraftGenerationFailure"
	KindVerification      ErrorKind = "VerificationFailure"
	KindMalformedCitation ErrorKind = "MalformedCitationFailure"
)

// Sentinels for errors.Is; every StageError matches the one of its kind.
var (
	ErrRetrievalFailure         = errors.New("retrieval failure")
	ErrDraftGenerationFailure   = errors.New("draft generation failure")
	ErrVerificationFailure      = errors.New("verification failure")
	ErrMalformedCitationFailure = errors.New("malformed citation failure")

	ErrEmptyQuestion = errors.New("question is required")
)

var kindSentinels = map[ErrorKind]error{
	KindRetrieval:         ErrRetrievalFailure,
	KindDraftGeneration:   ErrDraftGenerationFailure,
	KindVerification:      ErrVerificationFailure,
	KindMalformedCitation: ErrMalformedCitationFailure,
}

// StageError is returned by a stage and surfaced unchanged by the pipeline.
type StageError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s in %s stage: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of the StageError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}
