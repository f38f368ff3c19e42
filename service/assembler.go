package service

import (
	"errors"
	"fmt"

	"github.com/tieubaoca/citebot/types"
)

var ErrRunNotVerified = errors.New("run did not reach verified status")

// AssembleResponse packages a verified run. A failed or unfinished run has no
// response; its error is the run's failure.
func AssembleResponse(state *types.PipelineState) (*types.QAResponse, error) {
	if state == nil {
		return nil, ErrRunNotVerified
	}
	if state.Status() != types.StatusVerified {
		if state.Failure() != nil {
			return nil, state.Failure()
		}
		return nil, fmt.Errorf("%w: %s", ErrRunNotVerified, state.Status())
	}
	return &types.QAResponse{
		Answer:    state.Answer(),
		Context:   state.Context(),
		Citations: state.Citations(),
	}, nil
}
