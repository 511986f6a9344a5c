package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adam-a-i/ruya/internal/adapter/llm"
	"github.com/adam-a-i/ruya/internal/config"
	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/logger"
	"github.com/adam-a-i/ruya/internal/service"
	"github.com/adam-a-i/ruya/tests/helpers"
)

func newLiveServer(t *testing.T) (*httptest.Server, *service.Service, *Handler) {
	t.Helper()
	svc := service.New(service.Deps{
		Store:  helpers.NewTestSQLiteStore(t),
		LLM:    llm.NewMockClient(),
		Config: &config.Config{LLMModel: "gpt-4o"},
		Logger: logger.Nop(),
	})
	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	e := echo.New()
	h := NewHandler(svc, logger.Nop())
	h.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, svc, h
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + sessionID + "/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame ServerFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestLiveCallRoundTrip(t *testing.T) {
	srv, svc, _ := newLiveServer(t)
	ctx := context.Background()
	started, err := svc.StartSession(ctx, domain.StartSessionRequest{})
	require.NoError(t, err)
	id := started.Session.ID

	conn := dial(t, srv, id)
	ready := readFrame(t, conn)
	assert.Equal(t, TypeReady, ready.Type)
	assert.Equal(t, id, ready.SessionID)

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: TypeOpen}))
	opening := readFrame(t, conn)
	assert.Equal(t, TypeAgent, opening.Type)
	assert.NotEmpty(t, opening.Text)
	assert.False(t, opening.EndCall)

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: TypeUser, Content: "Which areas do you cover?"}))
	reply := readFrame(t, conn)
	assert.Equal(t, TypeAgent, reply.Type)
	assert.Contains(t, reply.Text, "Which areas do you cover?")

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: TypeUser, Content: "I'm not interested"}))
	bye := readFrame(t, conn)
	assert.True(t, bye.EndCall)
	assert.NotContains(t, bye.Text, "END_CALL")
	assert.Equal(t, TypeEnded, readFrame(t, conn).Type)

	session, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, session.Ended())
	assert.Equal(t, domain.SessionStateTranscribed, session.State)

	lines, err := svc.GetTranscript(ctx, id)
	require.NoError(t, err)
	require.Len(t, lines, 5)
	assert.Equal(t, domain.RoleAgent, lines[0].Role)
	assert.Equal(t, domain.RoleUser, lines[1].Role)
	assert.Equal(t, "I'm not interested", lines[3].Content)
}

func TestLiveCallErrors(t *testing.T) {
	srv, svc, h := newLiveServer(t)
	ctx := context.Background()
	started, err := svc.StartSession(ctx, domain.StartSessionRequest{})
	require.NoError(t, err)

	conn := dial(t, srv, started.Session.ID)
	readFrame(t, conn)
	assert.Equal(t, 1, h.Hub().SessionCount())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	frame := readFrame(t, conn)
	assert.Equal(t, TypeError, frame.Type)
	assert.Equal(t, ErrorCodeInvalidMessage, frame.Code)

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: TypeUser}))
	frame = readFrame(t, conn)
	assert.Equal(t, ErrorCodeInvalidInput, frame.Code)

	// A second open mid-call must not restart the greeting.
	require.NoError(t, conn.WriteJSON(ClientFrame{Type: TypeOpen}))
	assert.Equal(t, TypeAgent, readFrame(t, conn).Type)
	require.NoError(t, conn.WriteJSON(ClientFrame{Type: TypeUser, Content: "Who is this?"}))
	assert.Equal(t, TypeAgent, readFrame(t, conn).Type)
	require.NoError(t, conn.WriteJSON(ClientFrame{Type: TypeOpen}))
	frame = readFrame(t, conn)
	assert.Equal(t, TypeError, frame.Type)
	assert.Equal(t, ErrorCodeInvalidInput, frame.Code)

	lines, err := svc.GetTranscript(ctx, started.Session.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 3)

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: TypeHangup}))
	assert.Equal(t, TypeEnded, readFrame(t, conn).Type)

	session, err := svc.GetSession(ctx, started.Session.ID)
	require.NoError(t, err)
	assert.True(t, session.Ended())
}

func TestLiveRejectsEndedSession(t *testing.T) {
	srv, svc, _ := newLiveServer(t)
	ctx := context.Background()
	started, err := svc.StartSession(ctx, domain.StartSessionRequest{})
	require.NoError(t, err)
	_, err = svc.EndSession(ctx, started.Session.ID)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + started.Session.ID + "/live"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/sessions/missing/live", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
