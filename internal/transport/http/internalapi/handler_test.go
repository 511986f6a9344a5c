package internalapi

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
	"github.com/adam-a-i/ruya/internal/repository"
	"github.com/adam-a-i/ruya/internal/service"
	"github.com/adam-a-i/ruya/tests/helpers"
)

func newTestHandler(t *testing.T) (*Handler, *service.Service, *store.SQLiteStore, *domain.StrategyVersion) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	svc := service.New(service.Deps{
		Store:  db,
		LLM:    llm.NewMockClient(),
		Config: &config.Config{LLMModel: "gpt-4o", MutationThreshold: 2, MutationSampleSize: 10},
		Logger: logger.Nop(),
	})
	baseline, err := svc.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return NewHandler(svc), svc, db, baseline
}

func serve(t *testing.T, handler echo.HandlerFunc, method, target, body, name, value string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if name != "" {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func seedCall(t *testing.T, db *store.SQLiteStore, id, versionID string) {
	t.Helper()
	created, err := db.CreateCallRecord(context.Background(), &domain.CallRecord{
		ID:                id,
		ExternalCallRef:   "ext-" + id,
		StrategyVersionID: versionID,
		Transcript:        "Agent: hi\nUser: maybe",
		Analysis:          []byte(`{"objections":["price"]}`),
	})
	require.NoError(t, err)
	require.True(t, created)
}

func TestMutateRespectsThreshold(t *testing.T) {
	h, _, db, baseline := newTestHandler(t)
	seedCall(t, db, "c1", baseline.ID)

	rec := serve(t, h.Mutate, http.MethodPost, "/v1/strategy/mutate", `{}`, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res domain.MutationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Mutated)
	assert.Equal(t, service.SkipThresholdNotReached, res.SkipReason)

	rec = serve(t, h.Mutate, http.MethodPost, "/v1/strategy/mutate", `{"force":true}`, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Mutated)
	assert.Equal(t, "v1.0", res.OldVersion)
	assert.Equal(t, "v1.1", res.NewVersion)
}

func TestUpdateOutcome(t *testing.T) {
	h, svc, db, baseline := newTestHandler(t)
	seedCall(t, db, "c1", baseline.ID)
	seedCall(t, db, "c2", baseline.ID)

	rec := serve(t, h.UpdateOutcome, http.MethodPatch, "/v1/calls/c1/outcome", `{"outcome":"maybe"}`, "call_id", "c1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h.UpdateOutcome, http.MethodPatch, "/v1/calls/nope/outcome", `{"outcome":"booked"}`, "call_id", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h.UpdateOutcome, http.MethodPatch, "/v1/calls/c1/outcome", `{"outcome":"booked"}`, "call_id", "c1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.OutcomeUpdateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Changed)
	assert.Empty(t, resp.MutationJobID)
	assert.Equal(t, 1, resp.Version.TotalBookings)

	// Second counted call reaches the threshold of 2.
	rec = serve(t, h.UpdateOutcome, http.MethodPatch, "/v1/calls/c2/outcome", `{"outcome":"not_booked"}`, "call_id", "c2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.MutationJobID)

	rec = serve(t, h.GetJob, http.MethodGet, "/v1/jobs/"+resp.MutationJobID, "", "job_id", resp.MutationJobID)
	require.Equal(t, http.StatusOK, rec.Code)
	var job domain.PipelineJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, domain.JobTypeMutationCheck, job.Type)
	assert.Equal(t, baseline.ID, job.Ref)

	_, err := svc.GetJob(context.Background(), "job_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetJobNotFound(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := serve(t, h.GetJob, http.MethodGet, "/v1/jobs/job_x", "", "job_id", "job_x")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
