package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/tieubaoca/citebot/types"
	"go.uber.org/zap"
)

// DefaultMaxToolRounds bounds how many tool-call rounds one conversation may take.
const DefaultMaxToolRounds = 5

var ErrNoResponse = errors.New("no response generated")

type OpenAIService struct {
	client         *openai.Client
	functionsCall  map[string]types.FunctionHandler
	tools          []openai.Tool
	model          string
	embeddingModel string
	temperature    float32
	maxToolRounds  int
}

func NewOpenAIService(baseURL, apiKey, model string) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIService{
		client:         client,
		functionsCall:  make(map[string]types.FunctionHandler),
		tools:          make([]openai.Tool, 0),
		model:          model,
		embeddingModel: string(openai.SmallEmbedding3),
		maxToolRounds:  DefaultMaxToolRounds,
	}
}

// WithEmbeddingModel sets the model used by Embed.
func (s *OpenAIService) WithEmbeddingModel(model string) *OpenAIService {
	if model != "" {
		s.embeddingModel = model
	}
	return s
}

func (s *OpenAIService) WithTemperature(t float32) *OpenAIService {
	s.temperature = t
	return s
}

// Generate returns the final assistant reply of the conversation.
func (s *OpenAIService) Generate(ctx context.Context, systemInstructions, userContent string) (string, error) {
	return TranscriptGenerator{Backend: s}.Generate(ctx, systemInstructions, userContent)
}

// Converse runs one conversation, executing registered tool calls until the
// model stops asking for them, and returns the transcript without the
// system message.
func (s *OpenAIService) Converse(ctx context.Context, systemInstructions, userContent string) ([]types.Message, error) {
	openaiMessages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemInstructions},
		{Role: openai.ChatMessageRoleUser, Content: userContent},
	}
	transcript := []types.Message{{Role: types.RoleUser, Content: userContent}}

	for round := 0; ; round++ {
		resp, err := s.createChatCompletion(ctx, openaiMessages)
		if err != nil {
			return nil, err
		}
		choice := resp.Choices[0]
		openaiMessages = append(openaiMessages, choice.Message)
		transcript = append(transcript, types.Message{Role: types.RoleAssistant, Content: choice.Message.Content})

		if choice.FinishReason != openai.FinishReasonToolCalls || len(choice.Message.ToolCalls) == 0 {
			return transcript, nil
		}
		if round >= s.maxToolRounds {
			return nil, fmt.Errorf("model still calling tools after %d rounds", s.maxToolRounds)
		}

		toolMessages, err := s.handleFunctionCall(ctx, choice.Message.ToolCalls)
		if err != nil {
			return nil, err
		}
		for _, m := range toolMessages {
			openaiMessages = append(openaiMessages, m)
			transcript = append(transcript, types.Message{Role: types.RoleTool, Content: m.Content})
		}
	}
}

func (s *OpenAIService) createChatCompletion(ctx context.Context, messages []openai.ChatCompletionMessage) (openai.ChatCompletionResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: s.temperature,
	}
	if len(s.tools) > 0 {
		req.Tools = s.tools
	}
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, eris.Wrap(err, "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionResponse{}, ErrNoResponse
	}
	zap.L().Debug("openai: completion",
		zap.String("model", s.model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return resp, nil
}

// Embed returns the embedding vector of text.
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(s.embeddingModel),
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: embeddings")
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoResponse
	}
	return resp.Data[0].Embedding, nil
}

func (s *OpenAIService) RegisterFunctionCall(name, description string, params jsonschema.Definition, handler types.FunctionHandler) {
	if s.functionsCall == nil {
		s.functionsCall = make(map[string]types.FunctionHandler)
	}
	f := openai.FunctionDefinition{
		Name:        name,
		Description: description,
		Parameters:  params,
	}
	t := openai.Tool{
		Type:     openai.ToolTypeFunction,
		Function: &f,
	}
	s.functionsCall[name] = handler
	s.tools = append(s.tools, t)
}

func (s *OpenAIService) handleFunctionCall(ctx context.Context, toolCalls []openai.ToolCall) ([]openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(toolCalls))
	for _, toolCall := range toolCalls {
		if toolCall.Type != openai.ToolTypeFunction {
			continue
		}
		handler := s.functionsCall[toolCall.Function.Name]
		if handler == nil {
			return nil, fmt.Errorf("no handler found for function call %q", toolCall.Function.Name)
		}
		result, err := handler(ctx, []byte(toolCall.Function.Arguments))
		if err != nil {
			return nil, eris.Wrapf(err, "openai: tool %s", toolCall.Function.Name)
		}
		content, err := toolResultContent(result)
		if err != nil {
			return nil, err
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    content,
			Name:       toolCall.Function.Name,
			ToolCallID: toolCall.ID,
		})
	}
	return messages, nil
}

func toolResultContent(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return string(b), nil
}
