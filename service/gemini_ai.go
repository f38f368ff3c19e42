package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// geminiBackend is the client of one API key.
type geminiBackend interface {
	GenerateContent(ctx context.Context, model, systemInstructions, userContent string) (*genai.GenerateContentResponse, error)
	Close() error
}

type genaiBackend struct {
	client *genai.Client
}

func newGenaiBackend(apiKey string) (geminiBackend, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: new client")
	}
	return genaiBackend{client: client}, nil
}

// GenerateContent builds a fresh model handle so concurrent runs never share
// system instructions.
func (b genaiBackend) GenerateContent(ctx context.Context, model, systemInstructions, userContent string) (*genai.GenerateContentResponse, error) {
	m := b.client.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstructions)}}
	return m.GenerateContent(ctx, genai.Text(userContent))
}

func (b genaiBackend) Close() error {
	return b.client.Close()
}

// GeminiService generates text with Gemini. It holds several API keys and
// moves to the next one when a call fails. Clients are built once per key
// and stay open until Close, so a rotation never breaks calls in flight.
type GeminiService struct {
	apiKeys    []string
	modelName  string
	newBackend func(apiKey string) (geminiBackend, error)

	mu         sync.Mutex
	currentKey int
	backends   []geminiBackend
}

func NewGeminiService(apiKeys []string, modelName string) (*GeminiService, error) {
	return newGeminiService(apiKeys, modelName, newGenaiBackend)
}

func newGeminiService(apiKeys []string, modelName string, newBackend func(string) (geminiBackend, error)) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}

	service := &GeminiService{
		apiKeys:    apiKeys,
		modelName:  modelName,
		newBackend: newBackend,
		backends:   make([]geminiBackend, len(apiKeys)),
	}
	if _, _, err := service.current(); err != nil {
		return nil, err
	}
	return service, nil
}

// current returns the active key index and its client.
func (s *GeminiService) current() (int, geminiBackend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.backendLocked(s.currentKey)
	return s.currentKey, b, err
}

// rotateFrom moves past the key at index used, unless another call already
// rotated away from it.
func (s *GeminiService) rotateFrom(used int) (int, geminiBackend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentKey == used {
		s.currentKey = (used + 1) % len(s.apiKeys)
	}
	b, err := s.backendLocked(s.currentKey)
	return s.currentKey, b, err
}

func (s *GeminiService) backendLocked(i int) (geminiBackend, error) {
	if s.backends[i] == nil {
		b, err := s.newBackend(s.apiKeys[i])
		if err != nil {
			return nil, err
		}
		s.backends[i] = b
	}
	return s.backends[i], nil
}

func (s *GeminiService) Generate(ctx context.Context, systemInstructions, userContent string) (string, error) {
	used, backend, err := s.current()
	if err != nil {
		return "", err
	}
	resp, err := backend.GenerateContent(ctx, s.modelName, systemInstructions, userContent)
	if err != nil && len(s.apiKeys) > 1 && ctx.Err() == nil {
		zap.L().Warn("gemini: call failed, rotating API key", zap.Int("key", used), zap.Error(err))
		_, next, rotErr := s.rotateFrom(used)
		if rotErr != nil {
			return "", rotErr
		}
		resp, err = next.GenerateContent(ctx, s.modelName, systemInstructions, userContent)
	}
	if err != nil {
		return "", eris.Wrap(err, "gemini: generate content")
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoResponse
	}
	return candidateText(resp.Candidates[0]), nil
}

func candidateText(cand *genai.Candidate) string {
	if cand == nil || cand.Content == nil {
		return ""
	}
	var content strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			content.WriteString(string(text))
		}
	}
	return content.String()
}

// Close closes every client that was opened.
func (s *GeminiService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for i, b := range s.backends {
		if b == nil {
			continue
		}
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
		s.backends[i] = nil
	}
	return errors.Join(errs...)
}
