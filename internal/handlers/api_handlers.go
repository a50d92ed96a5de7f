package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/internal/lock"
	"github.com/sand/chain-compliance/backend/internal/usecases"
	"github.com/sand/chain-compliance/backend/internal/workers"
)

const maxListLimit = 500

type HTTPHandler struct {
	logger             *slog.Logger
	transactionService TransactionService
	riskService        RiskService
	scheduler          Scheduler
	gatherer           prometheus.Gatherer
}

func NewHTTPHandler(
	logger *slog.Logger,
	transactionService TransactionService,
	riskService RiskService,
	scheduler Scheduler,
	gatherer prometheus.Gatherer,
) *HTTPHandler {
	return &HTTPHandler{
		logger:             logger,
		transactionService: transactionService,
		riskService:        riskService,
		scheduler:          scheduler,
		gatherer:           gatherer,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	// Service
	router.HandleFunc("/healthz", h.Health).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// Scheduler
	router.HandleFunc("/scheduler/status", h.SchedulerStatus).Methods("GET")
	router.HandleFunc("/scheduler/jobs/{name}/trigger", h.TriggerJob).Methods("POST")

	// Risk
	router.HandleFunc("/risk/addresses/{address}", h.ScoreAddress).Methods("GET")

	// Compliance transactions
	router.HandleFunc("/organizations/{orgID}/transactions", h.GetOrganizationTransactions).Methods("GET")
}

func (h *HTTPHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) SchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// TriggerJob runs a job immediately. The run still goes through the lock.
func (h *HTTPHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	err := h.scheduler.TriggerManual(r.Context(), name)
	switch {
	case errors.Is(err, workers.ErrJobNotFound):
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	case errors.Is(err, lock.ErrNotAcquired):
		http.Error(w, "Job is running on another instance", http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("[Trigger Job] Job failed", "job", name, "error", err)
		http.Error(w, "Job failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Job finished", "job": name})
}

func (h *HTTPHandler) ScoreAddress(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(mux.Vars(r)["address"])

	analysisType := amlentities.AnalysisAddress
	if t := r.URL.Query().Get("type"); t != "" {
		analysisType = amlentities.AnalysisType(t)
	}
	if analysisType != amlentities.AnalysisAddress && analysisType != amlentities.AnalysisCounterparty {
		http.Error(w, "Invalid analysis type, expected address or counterparty", http.StatusBadRequest)
		return
	}

	result, err := h.riskService.ScoreAddress(r.Context(), address, analysisType)
	if err != nil {
		h.logger.Error("[Score Address] Failed to score address", "address", address, "error", err)
		http.Error(w, "Failed to score address", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// GetOrganizationTransactions lists compliance transactions of an
// organization. Listing auto-assigns pending records when the organization
// has a single active member.
func (h *HTTPHandler) GetOrganizationTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := entities.ComplianceTransactionFilter{
		OrganizationID: mux.Vars(r)["orgID"],
		Limit:          100,
	}

	if v := query.Get("monitored_address_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid monitored_address_id format", http.StatusBadRequest)
			return
		}
		filter.MonitoredAddressID = id
	}
	if v := query.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filter.Statuses = append(filter.Statuses, entities.TransactionStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	if v := query.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "Invalid since format, expected RFC3339", http.StatusBadRequest)
			return
		}
		filter.Since = &since
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.ParseUint(v, 10, 64)
		if err != nil || limit == 0 || limit > maxListLimit {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if v := query.Get("offset"); v != "" {
		offset, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}

	transactions, err := h.transactionService.ListForOrganization(r.Context(), filter)
	if errors.Is(err, usecases.ErrOrganizationNotFound) {
		http.Error(w, "Organization not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("[Organization Transactions] Failed to list transactions",
			"organization_id", filter.OrganizationID,
			"error", err)
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	if transactions == nil {
		transactions = []entities.ComplianceTransaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
