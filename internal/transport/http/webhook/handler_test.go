package webhook

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

func newTestHandler(t *testing.T, secret string) (*Handler, *service.Service) {
	t.Helper()
	svc := service.New(service.Deps{
		Store:  helpers.NewTestSQLiteStore(t),
		LLM:    llm.NewMockClient(),
		Config: &config.Config{LLMModel: "gpt-4o"},
		Logger: logger.Nop(),
	})
	if _, err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return NewHandler(svc, secret, logger.Nop()), svc
}

func post(t *testing.T, h *Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook/call-completed", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	if err := h.CallCompleted(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestCallCompletedFlatForm(t *testing.T) {
	h, svc := newTestHandler(t, "")

	rec := post(t, h, `{"call_id":"vc-1","transcript":"AI: hi\nUser: no","customer_number":"+15550001111"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ack domain.WebhookAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.True(t, ack.Success)
	assert.NotEmpty(t, ack.CallID)
	require.NotEmpty(t, ack.JobID)

	job, err := svc.GetJob(context.Background(), ack.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobTypeAnalyzeCall, job.Type)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
}

func TestCallCompletedEnvelope(t *testing.T) {
	h, svc := newTestHandler(t, "")
	body := `{"call":{"id":"vc-2","transcript":"AI: hello","startedAt":"2025-03-01T09:00:00Z","endedAt":"2025-03-01T09:01:05Z","customer":{"number":"+15550002222"}}}`

	rec := post(t, h, body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ack domain.WebhookAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))

	calls, err := svc.RecentCalls(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, ack.CallID, calls[0].ID)
	assert.Equal(t, "vc-2", calls[0].ExternalCallRef)
	assert.Equal(t, 65, calls[0].DurationSeconds)
	assert.Equal(t, "+15550002222", calls[0].CustomerNumber)
	assert.JSONEq(t, body, string(calls[0].Metadata))
}

func TestCallCompletedRejectsBadInput(t *testing.T) {
	h, _ := newTestHandler(t, "")

	rec := post(t, h, `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, `{"transcript":"no id"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallCompletedSecret(t *testing.T) {
	h, _ := newTestHandler(t, "s3cret")

	rec := post(t, h, `{"call_id":"vc-3"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, h, `{"call_id":"vc-3"}`, map[string]string{SecretHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, h, `{"call_id":"vc-3"}`, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
