package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/citebot/types"
)

type scriptedAnswerer struct {
	res *types.QAResponse
	err error
}

func (s scriptedAnswerer) Ask(_ context.Context, _ string, observers ...Observer) (*types.QAResponse, error) {
	statuses := []types.PipelineStatus{types.StatusInitialized, types.StatusRetrieved}
	if s.err != nil {
		statuses = append(statuses, types.StatusFailed)
	}
	for _, st := range statuses {
		for _, o := range observers {
			o("run-1", st)
		}
	}
	return s.res, s.err
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialQA(t *testing.T, qa QuestionAnswerer) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(NewWebSocketService(qa).HandleQA))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketService_Ask(t *testing.T) {
	citations := types.NewCitationMap()
	require.NoError(t, citations.Add("C1", types.CitationRecord{Page: 5, Source: "paper.pdf"}))
	conn := dialQA(t, scriptedAnswerer{res: &types.QAResponse{Answer: "a [C1]", Citations: citations}})

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ask", "payload": map[string]any{"question": "q"}}))

	for _, want := range []types.PipelineStatus{types.StatusInitialized, types.StatusRetrieved} {
		msg := readMessage(t, conn)
		assert.Equal(t, types.TypeWebsocketProcessing, msg.Type)
		var p types.WebSocketProcessingResponse
		require.NoError(t, json.Unmarshal(msg.Payload, &p))
		assert.Equal(t, want, p.Status)
		assert.Equal(t, "run-1", p.RunID)
	}

	msg := readMessage(t, conn)
	assert.Equal(t, types.TypeWebsocketAnswer, msg.Type)
	var res types.QAResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &res))
	assert.Equal(t, "a [C1]", res.Answer)
	assert.True(t, res.Citations.Has("C1"))
}

func TestWebSocketService_PingAndErrors(t *testing.T) {
	failure := &StageError{Kind: KindVerification, Stage: stageVerification, Err: errors.New("upstream 500")}
	conn := dialQA(t, scriptedAnswerer{err: failure})

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, types.TypeWebsocketPong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ask", "payload": map[string]any{"question": ""}}))
	assert.Equal(t, types.TypeWebsocketError, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ask", "payload": map[string]any{"question": "q"}}))
	var last wsMessage
	for {
		last = readMessage(t, conn)
		if last.Type != types.TypeWebsocketProcessing {
			break
		}
	}
	assert.Equal(t, types.TypeWebsocketError, last.Type)
	var e types.WebSocketErrorResponse
	require.NoError(t, json.Unmarshal(last.Payload, &e))
	assert.Equal(t, string(KindVerification), e.Kind)
	assert.NotContains(t, e.Message, "upstream")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, types.TypeWebsocketError, readMessage(t, conn).Type)
}
