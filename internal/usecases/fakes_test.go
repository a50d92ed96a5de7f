package usecases

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/sand/chain-compliance/backend/internal/aml"
	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

type dedupKey struct {
	txID      string
	addressID int64
	orgID     string
}

func keyOf(t *entities.ComplianceTransaction) dedupKey {
	org := ""
	if t.OrganizationID != nil {
		org = *t.OrganizationID
	}
	return dedupKey{txID: t.TxID, addressID: t.MonitoredAddressID, orgID: org}
}

// memoryTransactions is an in-memory ComplianceTransactionRepository with
// the same dedup contract as the unique index.
type memoryTransactions struct {
	mu      sync.Mutex
	nextID  int64
	records map[dedupKey]*entities.ComplianceTransaction

	// existsHook runs before Exists answers, used to simulate a concurrent writer.
	existsHook func(txID string)
}

func newMemoryTransactions() *memoryTransactions {
	return &memoryTransactions{records: make(map[dedupKey]*entities.ComplianceTransaction)}
}

func (m *memoryTransactions) ListTxIDs(_ context.Context, addressID int64, orgID string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]struct{})
	for k := range m.records {
		if k.addressID == addressID && k.orgID == orgID {
			ids[k.txID] = struct{}{}
		}
	}
	return ids, nil
}

func (m *memoryTransactions) Exists(_ context.Context, txID string, addressID int64, orgID string) (bool, error) {
	if m.existsHook != nil {
		m.existsHook(txID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.records[dedupKey{txID: txID, addressID: addressID, orgID: orgID}]
	return ok, nil
}

func (m *memoryTransactions) Insert(_ context.Context, t *entities.ComplianceTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := keyOf(t)
	if _, ok := m.records[k]; ok {
		return false, nil
	}
	m.nextID++
	t.ID = m.nextID
	stored := *t
	m.records[k] = &stored
	return true, nil
}

func (m *memoryTransactions) List(_ context.Context, filter entities.ComplianceTransactionFilter) ([]entities.ComplianceTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.ComplianceTransaction
	for k, t := range m.records {
		if k.orgID != filter.OrganizationID {
			continue
		}
		if filter.MonitoredAddressID != 0 && k.addressID != filter.MonitoredAddressID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if filter.Since != nil && t.Timestamp.Before(*filter.Since) {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if filter.Offset >= uint64(len(result)) {
		return nil, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < uint64(len(result)) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *memoryTransactions) AssignReviewer(_ context.Context, t *entities.ComplianceTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[keyOf(t)]
	if !ok || stored.Status != entities.StatusUnassigned {
		return false, nil
	}
	stored.Status = entities.StatusUnreviewed
	stored.ReviewerID = t.ReviewerID
	stored.StatusHistory = append([]entities.StatusChange(nil), t.StatusHistory...)
	return true, nil
}

func (m *memoryTransactions) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *memoryTransactions) all() []*entities.ComplianceTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*entities.ComplianceTransaction, 0, len(m.records))
	for _, t := range m.records {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TxID < result[j].TxID })
	return result
}

func (m *memoryTransactions) byTxID(txID string) *entities.ComplianceTransaction {
	for _, t := range m.all() {
		if t.TxID == txID {
			return t
		}
	}
	return nil
}

func containsStatus(statuses []entities.TransactionStatus, s entities.TransactionStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

type staticAddresses struct {
	addresses []entities.MonitoredAddress
	err       error
}

func (s *staticAddresses) ListActive(context.Context) ([]entities.MonitoredAddress, error) {
	return s.addresses, s.err
}

type staticOrgs map[string]*entities.Organization

func (s staticOrgs) Get(_ context.Context, id string) (*entities.Organization, error) {
	return s[id], nil
}

// pagedFeed serves incoming transactions per address in fixed-size pages,
// honoring the exclusion set like the real feeds do.
type pagedFeed struct {
	mu       sync.Mutex
	incoming map[string][]entities.FeedTransaction
	failFor  map[string]error
	requests int
}

func (f *pagedFeed) ListIncoming(_ context.Context, address string, exclude map[string]struct{}, page entities.PageRequest) (*entities.FeedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests++
	if err := f.failFor[address]; err != nil {
		return nil, err
	}

	all := f.incoming[address]
	start := 0
	if page.Cursor != "" {
		for i, t := range all {
			if t.TxID == page.Cursor {
				start = i + 1
				break
			}
		}
	}

	var (
		result []entities.FeedTransaction
		last   string
	)
	i := start
	for ; i < len(all) && len(result) < page.Limit; i++ {
		last = all[i].TxID
		if _, skip := exclude[all[i].TxID]; skip {
			continue
		}
		result = append(result, all[i])
	}

	next := ""
	if i < len(all) {
		next = last
	}
	return &entities.FeedPage{Transactions: result, NextCursor: next}, nil
}

func (f *pagedFeed) ListRecent(context.Context, string, int) ([]entities.FeedTransaction, error) {
	return nil, errors.New("not used")
}

type staticCospend map[string]string

func (s staticCospend) Representatives(_ context.Context, addresses []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, a := range addresses {
		if rep, ok := s[a]; ok {
			result[a] = rep
		}
	}
	return result, nil
}

type staticAttributions map[string]entities.Attribution

func (s staticAttributions) Lookup(_ context.Context, addresses []string) ([]entities.Attribution, error) {
	var result []entities.Attribution
	for _, a := range addresses {
		if attr, ok := s[a]; ok {
			result = append(result, attr)
		}
	}
	return result, nil
}

// scriptedScorer returns a fixed overall risk and entity per address.
// Unknown addresses score like an unattributed counterparty.
type scriptedScorer struct {
	mu       sync.Mutex
	risk     map[string]float64
	entityOf map[string]string
	errFor   map[string]error
	calls    map[string]int
}

func newScriptedScorer(risk map[string]float64, entityOf map[string]string) *scriptedScorer {
	return &scriptedScorer{risk: risk, entityOf: entityOf, calls: make(map[string]int)}
}

func (s *scriptedScorer) ScoreAddress(_ context.Context, address string, analysisType amlentities.AnalysisType, _ ...aml.ScoreOption) (*amlentities.RiskScoringResult, error) {
	s.mu.Lock()
	s.calls[address]++
	err := s.errFor[address]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := &amlentities.RiskScoringResult{
		Address:      address,
		AnalysisType: analysisType,
		OverallRisk:  amlentities.DefaultTransactionRisk,
	}
	if r, ok := s.risk[address]; ok {
		result.OverallRisk = r
	}

	if id, ok := s.entityOf[address]; ok {
		result.Entity = &entities.EntityRecord{ID: id}
	}
	return result, nil
}

func (s *scriptedScorer) callCount(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[address]
}

type recordingEvents struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (r *recordingEvents) PublishTransactionCreated(_ context.Context, t *entities.ComplianceTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, t.TxID)
	return r.err
}
