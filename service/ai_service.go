package service

import (
	"context"

	"github.com/tieubaoca/citebot/types"
)

// Generator produces the model's final text reply for one instruction/content pair.
type Generator interface {
	Generate(ctx context.Context, systemInstructions, userContent string) (string, error)
}

// TranscriptBackend is a generation backend that returns the whole
// conversation it produced (tool calls included) instead of a bare reply.
type TranscriptBackend interface {
	Converse(ctx context.Context, systemInstructions, userContent string) ([]types.Message, error)
}

// TranscriptGenerator adapts a TranscriptBackend to Generator by keeping the
// last assistant message.
type TranscriptGenerator struct {
	Backend TranscriptBackend
}

func (g TranscriptGenerator) Generate(ctx context.Context, systemInstructions, userContent string) (string, error) {
	messages, err := g.Backend.Converse(ctx, systemInstructions, userContent)
	if err != nil {
		return "", err
	}
	return LastAssistantReply(messages), nil
}

// LastAssistantReply returns the content of the last assistant message, or ""
// when there is none.
func LastAssistantReply(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleAssistant {
			return messages[i].Content
		}
	}
	return ""
}
