package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tieubaoca/citebot/types"
	"go.uber.org/zap"
)

const (
	wsReadLimit   = 512 * 1024
	wsReadTimeout = 5 * time.Minute
)

// QuestionAnswerer answers one question, reporting status changes to observers.
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string, observers ...Observer) (*types.QAResponse, error)
}

// WebSocketService answers questions over a websocket. Requests on one
// connection are handled one at a time.
type WebSocketService struct {
	qa       QuestionAnswerer
	upgrader websocket.Upgrader
}

func NewWebSocketService(qa QuestionAnswerer) *WebSocketService {
	return &WebSocketService{
		qa: qa,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *WebSocketService) HandleQA(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("websocket: upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("websocket: read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if err := s.handleMessage(ctx, conn, p); err != nil {
			zap.L().Warn("websocket: write error", zap.Error(err))
			return
		}
	}
}

// handleMessage answers one client message. Only write errors are returned.
func (s *WebSocketService) handleMessage(ctx context.Context, conn *websocket.Conn, p []byte) error {
	var req struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(p, &req); err != nil {
		return writeError(conn, "invalid message", "")
	}

	switch req.Type {
	case types.TypeWebsocketPing:
		return conn.WriteJSON(types.WebSocketResponse{Type: types.TypeWebsocketPong})

	case types.TypeWebsocketAsk:
		var ask types.QARequest
		if err := json.Unmarshal(req.Payload, &ask); err != nil {
			return writeError(conn, "invalid payload", "")
		}
		if err := ask.Validate(); err != nil {
			return writeError(conn, err.Error(), "")
		}

		var writeErr error
		observer := func(runID string, status types.PipelineStatus) {
			if writeErr != nil {
				return
			}
			writeErr = conn.WriteJSON(types.WebSocketResponse{
				Type:    types.TypeWebsocketProcessing,
				Payload: types.WebSocketProcessingResponse{RunID: runID, Status: status},
			})
		}
		res, err := s.qa.Ask(ctx, ask.Question, observer)
		if writeErr != nil {
			return writeErr
		}
		if err != nil {
			zap.L().Error("websocket: ask failed", zap.Error(err))
			kind, _ := KindOf(err)
			return writeError(conn, PublicMessage(err), string(kind))
		}
		return conn.WriteJSON(types.WebSocketResponse{Type: types.TypeWebsocketAnswer, Payload: res})

	default:
		return writeError(conn, "unknown message type "+req.Type, "")
	}
}

func writeError(conn *websocket.Conn, message, kind string) error {
	return conn.WriteJSON(types.WebSocketResponse{
		Type:    types.TypeWebsocketError,
		Payload: types.WebSocketErrorResponse{Message: message, Kind: kind},
	})
}

// PublicMessage is the error text shown to API clients. Stage failures only
// expose their kind and stage.
func PublicMessage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		if se.Kind == KindMalformedCitation {
			return se.Error()
		}
		return string(se.Kind) + " in " + se.Stage + " stage"
	}
	if errors.Is(err, ErrEmptyQuestion) {
		return err.Error()
	}
	return "internal error"
}
