package types

import (
	"context"
)

const (
	TypeWebsocketPing       = "ping"
	TypeWebsocketPong       = "pong"
	TypeWebsocketAsk        = "ask"
	TypeWebsocketProcessing = "processing"
	TypeWebsocketAnswer     = "answer"
	TypeWebsocketError      = "error"
)

type WebsocketRequest struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketResponse struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketProcessingResponse struct {
	RunID  string         `json:"run_id"`
	Status PipelineStatus `json:"status"`
}

type WebSocketErrorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single message in a conversation transcript
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FunctionHandler is a type for handling function calls
type FunctionHandler func(ctx context.Context, args []byte) (any, error)
