package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

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

func newTestHandler(t *testing.T, client llm.LLMClient) (*Handler, *service.Service) {
	t.Helper()
	svc := service.New(service.Deps{
		Store:  helpers.NewTestSQLiteStore(t),
		LLM:    client,
		Config: &config.Config{LLMModel: "gpt-4o", MutationThreshold: 5, MutationSampleSize: 10},
		Logger: logger.Nop(),
	})
	if _, err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return NewHandler(svc), svc
}

func doJSON(t *testing.T, handler echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestStartSessionAndTurns(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockClient())

	rec := doJSON(t, h.StartSession, http.MethodPost, "/v1/sessions", `{"contact":{"name":"Ali"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started domain.StartSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, domain.RingStatusSkipped, started.RingStatus)
	id := started.Session.ID

	rec = doJSON(t, h.NextTurn, http.MethodPost, "/v1/sessions/"+id+"/turns", `{"message":"__OPENING__"}`, "session_id", id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h.NextTurn, http.MethodPost, "/v1/sessions/"+id+"/turns", `{"message":"not interested"}`, "session_id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	var turn domain.TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	assert.True(t, turn.EndCall)

	rec = doJSON(t, h.NextTurn, http.MethodPost, "/v1/sessions/"+id+"/turns", `{"message":"hello?"}`, "session_id", id)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h.EndSession, http.MethodPost, "/v1/sessions/"+id+"/end", "", "session_id", id)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNextTurnValidation(t *testing.T) {
	h, svc := newTestHandler(t, llm.NewMockClient())
	started, err := svc.StartSession(context.Background(), domain.StartSessionRequest{})
	require.NoError(t, err)
	id := started.Session.ID

	rec := doJSON(t, h.NextTurn, http.MethodPost, "/v1/sessions/"+id+"/turns", `{"message":""}`, "session_id", id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h.NextTurn, http.MethodPost, "/v1/sessions/x/turns", `{"message":"hi"}`, "session_id", "missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockClient())
	rec := doJSON(t, h.GetSession, http.MethodGet, "/v1/sessions/nope", "", "session_id", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTranscriptEvaluateRefine(t *testing.T) {
	h, svc := newTestHandler(t, llm.NewMockClient())
	ctx := context.Background()
	started, err := svc.StartSession(ctx, domain.StartSessionRequest{})
	require.NoError(t, err)
	id := started.Session.ID

	rec := doJSON(t, h.Evaluate, http.MethodPost, "/v1/sessions/"+id+"/evaluate", "", "session_id", id)
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, err = svc.EndSession(ctx, id)
	require.NoError(t, err)

	rec = doJSON(t, h.AppendTranscript, http.MethodPost, "/v1/sessions/"+id+"/transcript",
		`{"lines":[{"role":"agent","content":"Hi there"},{"role":"client","content":"Not this year"}]}`, "session_id", id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h.AppendTranscript, http.MethodPost, "/v1/sessions/"+id+"/transcript",
		`{"lines":[{"role":"robot","content":"beep"}]}`, "session_id", id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h.GetTranscript, http.MethodGet, "/v1/sessions/"+id+"/transcript", "", "session_id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	var transcript struct {
		Lines []domain.TranscriptLine `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transcript))
	require.Len(t, transcript.Lines, 2)
	assert.Equal(t, domain.RoleUser, transcript.Lines[1].Role)

	rec = doJSON(t, h.Evaluate, http.MethodPost, "/v1/sessions/"+id+"/evaluate", "", "session_id", id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var eval domain.EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eval))
	assert.True(t, eval.Analysis.OK)
	assert.True(t, eval.OutcomeRecorded.OK)

	rec = doJSON(t, h.Refine, http.MethodPost, "/v1/sessions/"+id+"/refine", "", "session_id", id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refined domain.RefineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refined))
	assert.NotEmpty(t, refined.ImprovedPrompt)
	assert.False(t, refined.Fallback)
}

func TestRefineFallbackWithoutReasoningService(t *testing.T) {
	h, svc := newTestHandler(t, nil)
	ctx := context.Background()
	started, err := svc.StartSession(ctx, domain.StartSessionRequest{})
	require.NoError(t, err)
	id := started.Session.ID
	_, err = svc.EndSession(ctx, id)
	require.NoError(t, err)
	_, err = svc.AppendTranscript(ctx, id, domain.AppendTranscriptRequest{Lines: []domain.TranscriptLineInput{{Role: "user", Content: "Call me later"}}})
	require.NoError(t, err)

	rec := doJSON(t, h.Refine, http.MethodPost, "/v1/sessions/"+id+"/refine", "", "session_id", id)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var refined domain.RefineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refined))
	assert.True(t, refined.Fallback)
	assert.NotEmpty(t, refined.NextPitchSummary)

	rec = doJSON(t, h.Evaluate, http.MethodPost, "/v1/sessions/"+id+"/evaluate", "", "session_id", id)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
