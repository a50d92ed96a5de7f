package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sand/chain-compliance/backend/internal/aml"
	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/internal/lock"
	"github.com/sand/chain-compliance/backend/internal/usecases"
	"github.com/sand/chain-compliance/backend/internal/workers"
)

type stubTransactions struct {
	filter entities.ComplianceTransactionFilter
	result []entities.ComplianceTransaction
	err    error
}

func (s *stubTransactions) ListForOrganization(_ context.Context, filter entities.ComplianceTransactionFilter) ([]entities.ComplianceTransaction, error) {
	s.filter = filter
	return s.result, s.err
}

type stubRisk struct {
	analysisType amlentities.AnalysisType
	err          error
}

func (s *stubRisk) ScoreAddress(_ context.Context, address string, analysisType amlentities.AnalysisType, _ ...aml.ScoreOption) (*amlentities.RiskScoringResult, error) {
	s.analysisType = analysisType
	if s.err != nil {
		return nil, s.err
	}
	return &amlentities.RiskScoringResult{Address: address, AnalysisType: analysisType, OverallRisk: 0.42}, nil
}

type stubScheduler struct {
	triggerErr error
	triggered  string
}

func (s *stubScheduler) Status() workers.Status {
	return workers.Status{Enabled: true, Jobs: []workers.JobStatus{{Name: workers.JobTransactionScreening}}}
}

func (s *stubScheduler) TriggerManual(_ context.Context, name string) error {
	s.triggered = name
	return s.triggerErr
}

func newTestRouter(txs *stubTransactions, risk *stubRisk, sched *stubScheduler) *mux.Router {
	h := NewHTTPHandler(slog.Default(), txs, risk, sched, prometheus.NewRegistry())
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(&stubTransactions{}, &stubRisk{}, &stubScheduler{})

	rec := serve(router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTriggerJob(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "finished", err: nil, wantCode: http.StatusOK},
		{name: "unknown job", err: workers.ErrJobNotFound, wantCode: http.StatusNotFound},
		{name: "lock held", err: lock.ErrNotAcquired, wantCode: http.StatusConflict},
		{name: "job failed", err: errors.New("feed unavailable"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := &stubScheduler{triggerErr: tt.err}
			router := newTestRouter(&stubTransactions{}, &stubRisk{}, sched)

			rec := serve(router, http.MethodPost, "/scheduler/jobs/transaction-screening/trigger")
			require.Equal(t, tt.wantCode, rec.Code)
			require.Equal(t, workers.JobTransactionScreening, sched.triggered)
		})
	}
}

func TestSchedulerStatus(t *testing.T) {
	router := newTestRouter(&stubTransactions{}, &stubRisk{}, &stubScheduler{})

	rec := serve(router, http.MethodGet, "/scheduler/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status workers.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.True(t, status.Enabled)
	require.Len(t, status.Jobs, 1)
}

func TestScoreAddressHandler(t *testing.T) {
	risk := &stubRisk{}
	router := newTestRouter(&stubTransactions{}, risk, &stubScheduler{})

	rec := serve(router, http.MethodGet, "/risk/addresses/bc1qsender?type=counterparty")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, amlentities.AnalysisCounterparty, risk.analysisType)

	var result amlentities.RiskScoringResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Equal(t, "bc1qsender", result.Address)
	require.Equal(t, 42, result.Score())

	rec = serve(router, http.MethodGet, "/risk/addresses/bc1qsender?type=deep")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	risk.err = errors.New("attribution timeout")
	rec = serve(router, http.MethodGet, "/risk/addresses/bc1qsender")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetOrganizationTransactions(t *testing.T) {
	txs := &stubTransactions{}
	router := newTestRouter(txs, &stubRisk{}, &stubScheduler{})

	rec := serve(router, http.MethodGet,
		"/organizations/org-1/transactions?status=unassigned,UNREVIEWED&monitored_address_id=7&since=2025-01-01T00:00:00Z&limit=20&offset=40")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	require.Equal(t, "org-1", txs.filter.OrganizationID)
	require.Equal(t, int64(7), txs.filter.MonitoredAddressID)
	require.Equal(t, []entities.TransactionStatus{entities.StatusUnassigned, entities.StatusUnreviewed}, txs.filter.Statuses)
	require.NotNil(t, txs.filter.Since)
	require.Equal(t, uint64(20), txs.filter.Limit)
	require.Equal(t, uint64(40), txs.filter.Offset)

	for _, target := range []string{
		"/organizations/org-1/transactions?limit=0",
		"/organizations/org-1/transactions?limit=100000",
		"/organizations/org-1/transactions?since=yesterday",
		"/organizations/org-1/transactions?monitored_address_id=abc",
		"/organizations/org-1/transactions?offset=-1",
	} {
		rec = serve(router, http.MethodGet, target)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	txs.err = usecases.ErrOrganizationNotFound
	rec = serve(router, http.MethodGet, "/organizations/org-unknown/transactions")
	require.Equal(t, http.StatusNotFound, rec.Code)

	txs.err = errors.New("db down")
	rec = serve(router, http.MethodGet, "/organizations/org-1/transactions")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
