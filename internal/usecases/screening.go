package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.openly.dev/pointy"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/sand/chain-compliance/backend/internal/aml"
	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/internal/metrics"
	"github.com/sand/chain-compliance/backend/internal/shared"
)

var (
	ErrInvalidTransaction   = errors.New("invalid transaction")
	ErrOrganizationNotFound = errors.New("organization not found")
)

const (
	defaultBatchSize = 5
	defaultPageSize  = 25
	defaultMaxPages  = 10
)

// MonitoredAddressRepository lists the watch-list.
type MonitoredAddressRepository interface {
	ListActive(ctx context.Context) ([]entities.MonitoredAddress, error)
}

// ComplianceTransactionRepository persists screening results.
type ComplianceTransactionRepository interface {
	ListTxIDs(ctx context.Context, monitoredAddressID int64, organizationID string) (map[string]struct{}, error)
	Exists(ctx context.Context, txID string, monitoredAddressID int64, organizationID string) (bool, error)
	Insert(ctx context.Context, t *entities.ComplianceTransaction) (bool, error)
	List(ctx context.Context, filter entities.ComplianceTransactionFilter) ([]entities.ComplianceTransaction, error)
	AssignReviewer(ctx context.Context, t *entities.ComplianceTransaction) (bool, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RiskScorer scores a single address.
type RiskScorer interface {
	ScoreAddress(ctx context.Context, address string, analysisType amlentities.AnalysisType, opts ...aml.ScoreOption) (*amlentities.RiskScoringResult, error)
}

// EventPublisher announces created records. Publishing is best effort.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, t *entities.ComplianceTransaction) error
}

type ScreeningConfig struct {
	BatchSize                   int
	PageSize                    int
	MaxPages                    int
	DefaultRiskScoreThreshold   int
	DefaultTransactionThreshold decimal.Decimal
}

// SweepSummary counts the outcome of one screening run.
type SweepSummary struct {
	Addresses       int
	FailedAddresses int
	Created         int
	Duplicates      int
	Failed          int
}

// AddressResult counts the outcome of screening one address.
type AddressResult struct {
	Fetched    int
	Created    int
	Duplicates int
	Failed     int
}

type thresholds struct {
	risk   int
	amount decimal.Decimal
}

// ScreeningService pulls new incoming transactions of monitored addresses,
// scores their counterparties and stores triaged compliance records.
type ScreeningService struct {
	logger       *slog.Logger
	cfg          ScreeningConfig
	addresses    MonitoredAddressRepository
	transactions ComplianceTransactionRepository
	orgs         ports.OrganizationDirectory
	feed         ports.TransactionFeed
	cospend      ports.CospendResolver
	attributions ports.AttributionLookup
	scorer       RiskScorer
	events       EventPublisher
	metrics      *metrics.Metrics
}

func NewScreeningService(
	logger *slog.Logger,
	cfg ScreeningConfig,
	addresses MonitoredAddressRepository,
	transactions ComplianceTransactionRepository,
	orgs ports.OrganizationDirectory,
	feed ports.TransactionFeed,
	cospend ports.CospendResolver,
	attributions ports.AttributionLookup,
	scorer RiskScorer,
	events EventPublisher,
	m *metrics.Metrics,
) *ScreeningService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}

	return &ScreeningService{
		logger:       logger,
		cfg:          cfg,
		addresses:    addresses,
		transactions: transactions,
		orgs:         orgs,
		feed:         feed,
		cospend:      cospend,
		attributions: attributions,
		scorer:       scorer,
		events:       events,
		metrics:      m,
	}
}

// RunSweep screens every active monitored address. Only a failure to list
// the watch-list aborts the run; a failing address is logged and skipped.
func (s *ScreeningService) RunSweep(ctx context.Context) (*SweepSummary, error) {
	started := time.Now()

	addresses, err := s.addresses.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored addresses: %w", err)
	}

	summary := &SweepSummary{}
	for _, address := range addresses {
		if err = ctx.Err(); err != nil {
			return summary, err
		}

		summary.Addresses++
		result, err := s.ScreenAddress(ctx, address)
		if err != nil {
			summary.FailedAddresses++
			s.metrics.IncSkipped("address_failed")
			s.logger.ErrorContext(ctx, "Failed to screen monitored address",
				"monitored_address_id", address.ID,
				"address", address.Address,
				"error", err)
			continue
		}

		summary.Created += result.Created
		summary.Duplicates += result.Duplicates
		summary.Failed += result.Failed
	}

	s.logger.InfoContext(ctx, "Screening sweep finished",
		"addresses", summary.Addresses,
		"failed_addresses", summary.FailedAddresses,
		"created", summary.Created,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
		"duration", time.Since(started).String())

	return summary, nil
}

// ScreenAddress ingests the new incoming transactions of one monitored address.
func (s *ScreeningService) ScreenAddress(ctx context.Context, monitored entities.MonitoredAddress) (*AddressResult, error) {
	address, err := shared.NormalizeAddress(monitored.Blockchain, monitored.Address)
	if err != nil {
		return nil, err
	}

	limits, err := s.thresholdsFor(ctx, monitored)
	if err != nil {
		return nil, err
	}

	orgKey := monitored.OrganizationKey()
	exclude, err := s.transactions.ListTxIDs(ctx, monitored.ID, orgKey)
	if err != nil {
		return nil, err
	}

	var (
		result                     AddressResult
		created, duplicates, fails atomic.Int64
		cursor                     string
	)

	for pageNum := 0; pageNum < s.cfg.MaxPages; pageNum++ {
		page, err := s.feed.ListIncoming(ctx, address, exclude, entities.PageRequest{
			Limit:  s.cfg.PageSize,
			Cursor: cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch incoming transactions: %w", err)
		}

		result.Fetched += len(page.Transactions)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.BatchSize)

		for _, feedTx := range page.Transactions {
			g.Go(func() error {
				ok, err := s.processTransaction(gctx, monitored, address, limits, feedTx)
				switch {
				case err != nil:
					fails.Add(1)
					reason := "error"
					if errors.Is(err, ErrInvalidTransaction) {
						reason = "invalid"
					}
					s.metrics.IncSkipped(reason)
					s.logger.ErrorContext(gctx, "Failed to screen transaction",
						"monitored_address_id", monitored.ID,
						"tx_id", feedTx.TxID,
						"error", err)
				case ok:
					created.Add(1)
				default:
					duplicates.Add(1)
					s.metrics.IncSkipped("duplicate")
				}
				// одна транзакция не должна останавливать остальные
				return nil
			})
		}
		_ = g.Wait()

		for _, feedTx := range page.Transactions {
			exclude[feedTx.TxID] = struct{}{}
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	result.Created = int(created.Load())
	result.Duplicates = int(duplicates.Load())
	result.Failed = int(fails.Load())

	s.logger.InfoContext(ctx, "Monitored address screened",
		"monitored_address_id", monitored.ID,
		"address", address,
		"fetched", result.Fetched,
		"created", result.Created,
		"duplicates", result.Duplicates,
		"failed", result.Failed)

	return &result, nil
}

func (s *ScreeningService) thresholdsFor(ctx context.Context, monitored entities.MonitoredAddress) (thresholds, error) {
	if monitored.OrganizationID == nil {
		return thresholds{
			risk:   s.cfg.DefaultRiskScoreThreshold,
			amount: s.cfg.DefaultTransactionThreshold,
		}, nil
	}

	org, err := s.orgs.Get(ctx, *monitored.OrganizationID)
	if err != nil {
		return thresholds{}, fmt.Errorf("failed to get organization: %w", err)
	}
	if org == nil {
		return thresholds{}, fmt.Errorf("%w: %s", ErrOrganizationNotFound, *monitored.OrganizationID)
	}

	return thresholds{risk: org.RiskScoreThreshold, amount: org.TransactionThreshold}, nil
}

// processTransaction scores one transaction and stores it. It reports false
// when the record already exists.
func (s *ScreeningService) processTransaction(
	ctx context.Context,
	monitored entities.MonitoredAddress,
	address string,
	limits thresholds,
	feedTx entities.FeedTransaction,
) (bool, error) {
	amount := feedTx.ReceivedBy(address)
	if feedTx.TxID == "" {
		return false, fmt.Errorf("%w: missing tx id", ErrInvalidTransaction)
	}
	if !amount.IsPositive() {
		return false, fmt.Errorf("%w: %s pays nothing to %s", ErrInvalidTransaction, feedTx.TxID, address)
	}

	scores, entityIDs, err := s.scoreCounterparties(ctx, feedTx, address)
	if err != nil {
		return false, err
	}

	orgKey := monitored.OrganizationKey()
	exists, err := s.transactions.Exists(ctx, feedTx.TxID, monitored.ID, orgKey)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	status, note := Disposition(scores, amount, limits.risk, limits.amount)

	record := &entities.ComplianceTransaction{
		TxID:                 feedTx.TxID,
		MonitoredAddressID:   monitored.ID,
		OrganizationID:       monitored.OrganizationID,
		CounterpartyEntities: entityIDs,
		Amount:               amount,
		Timestamp:            time.Unix(feedTx.Timestamp, 0).UTC(),
		RiskScores:           scores,
		Status:               status,
		StatusHistory:        []entities.StatusChange{},
		Notes:                note,
	}

	created, err := s.transactions.Insert(ctx, record)
	if err != nil || !created {
		return false, err
	}

	s.metrics.IncRecordCreated(string(status))
	s.logger.InfoContext(ctx, "Compliance transaction created",
		"tx_id", record.TxID,
		"monitored_address_id", record.MonitoredAddressID,
		"status", record.Status,
		"risk_scores", record.RiskScores,
		"amount", record.Amount.String())

	if s.events != nil {
		if err = s.events.PublishTransactionCreated(ctx, record); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish compliance transaction event",
				"tx_id", record.TxID,
				"error", err)
		}
	}

	return true, nil
}

// scoreCounterparties scores every distinct cospend representative of the
// transaction inputs once. It returns the 0..100 scores and the distinct
// counterparty entity ids.
func (s *ScreeningService) scoreCounterparties(ctx context.Context, feedTx entities.FeedTransaction, self string) ([]int, []string, error) {
	senders := make([]string, 0, len(feedTx.Inputs))
	seen := make(map[string]struct{}, len(feedTx.Inputs))
	for _, in := range feedTx.Inputs {
		if in.Address == "" || in.Address == self {
			continue
		}
		if _, ok := seen[in.Address]; ok {
			continue
		}
		seen[in.Address] = struct{}{}
		senders = append(senders, in.Address)
	}

	if len(senders) == 0 {
		return []int{}, []string{}, nil
	}

	reps, err := s.cospend.Representatives(ctx, senders)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve cospend representatives: %w", err)
	}

	unique := make(map[string]struct{}, len(senders))
	for _, sender := range senders {
		rep := sender
		if r, ok := reps[sender]; ok && r != "" {
			rep = r
		}
		unique[rep] = struct{}{}
	}
	representatives := make([]string, 0, len(unique))
	for rep := range unique {
		representatives = append(representatives, rep)
	}
	slices.Sort(representatives)

	attributions, err := s.attributions.Lookup(ctx, representatives)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup counterparty attributions: %w", err)
	}
	byAddress := make(map[string]*entities.Attribution, len(attributions))
	for i := range attributions {
		byAddress[attributions[i].Address] = &attributions[i]
	}

	scores := make([]int, 0, len(representatives))
	entityIDs := make([]string, 0, len(representatives))
	seenEntities := make(map[string]struct{})

	for _, rep := range representatives {
		result, err := s.scorer.ScoreAddress(ctx, rep, amlentities.AnalysisCounterparty,
			aml.WithAttribution(byAddress[rep]))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to score counterparty %s: %w", rep, err)
		}

		scores = append(scores, result.Score())
		if result.Entity == nil {
			continue
		}
		if _, ok := seenEntities[result.Entity.ID]; !ok {
			seenEntities[result.Entity.ID] = struct{}{}
			entityIDs = append(entityIDs, result.Entity.ID)
		}
	}

	return scores, entityIDs, nil
}

// Disposition picks the initial status of a record. The risk note wins when
// both closure rules apply; with no counterparty scores every score is
// vacuously below the threshold.
func Disposition(scores []int, amount decimal.Decimal, riskThreshold int, amountThreshold decimal.Decimal) (entities.TransactionStatus, string) {
	allBelow := true
	for _, score := range scores {
		if score >= riskThreshold {
			allBelow = false
			break
		}
	}
	if allBelow {
		return entities.StatusClosedWithNote, entities.NoteRiskBelowThreshold
	}

	if amountThreshold.IsPositive() && amount.LessThan(amountThreshold) {
		return entities.StatusClosedWithNote, entities.NoteAmountBelowThreshold
	}

	return entities.StatusUnassigned, ""
}

// reviewerOf returns the current reviewer or "".
func reviewerOf(t *entities.ComplianceTransaction) string {
	return pointy.StringValue(t.ReviewerID, "")
}
