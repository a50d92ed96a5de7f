package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var transactionColumns = []string{
	"id",
	"tx_id",
	"monitored_address_id",
	"organization_id",
	"counterparty_entities",
	"amount::text",
	"tx_timestamp",
	"risk_scores",
	"status",
	"reviewer_id",
	"status_history",
	"notes",
	"created_at",
	"updated_at",
}

// TransactionsRepository stores compliance transactions.
type TransactionsRepository struct {
	logger *slog.Logger

	db         tx.DBGetter
	transactor *tx.Transactor
}

// NewTransactionsRepository creates a new compliance transactions repository.
func NewTransactionsRepository(logger *slog.Logger, pg *database.Postgres) *TransactionsRepository {
	return &TransactionsRepository{
		logger:     logger,
		db:         pg.DBGetter,
		transactor: pg.Transactor,
	}
}

// ListTxIDs returns the ids of transactions already ingested for the monitored
// address within the organization.
func (r *TransactionsRepository) ListTxIDs(ctx context.Context, monitoredAddressID int64, organizationID string) (map[string]struct{}, error) {
	query := `SELECT tx_id
                FROM compliance_transactions
               WHERE monitored_address_id = $1
                 AND COALESCE(organization_id, '') = $2`

	rows, err := r.db(ctx).Query(ctx, query, monitoredAddressID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingested tx ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect ingested tx ids: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Exists checks whether the dedup key is already taken.
func (r *TransactionsRepository) Exists(ctx context.Context, txID string, monitoredAddressID int64, organizationID string) (bool, error) {
	var exists bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM compliance_transactions
		                WHERE tx_id = $1 AND monitored_address_id = $2 AND COALESCE(organization_id, '') = $3)`,
		txID, monitoredAddressID, organizationID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check if compliance transaction exists: %w", err)
	}
	return exists, nil
}

// Insert stores a new record. It returns false when the unique index already
// holds the dedup key; existing rows are never touched.
func (r *TransactionsRepository) Insert(ctx context.Context, t *entities.ComplianceTransaction) (bool, error) {
	history, err := json.Marshal(nonNilHistory(t.StatusHistory))
	if err != nil {
		return false, fmt.Errorf("failed to marshal status history: %w", err)
	}

	query := `INSERT INTO compliance_transactions
		(tx_id, monitored_address_id, organization_id, counterparty_entities, amount, tx_timestamp,
		 risk_scores, status, reviewer_id, status_history, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT DO NOTHING
		RETURNING id`

	now := time.Now()
	err = r.db(ctx).QueryRow(ctx, query,
		t.TxID,
		t.MonitoredAddressID,
		t.OrganizationID,
		nonNilStrings(t.CounterpartyEntities),
		t.Amount.String(),
		t.Timestamp,
		nonNilInts(t.RiskScores),
		string(t.Status),
		t.ReviewerID,
		history,
		t.Notes,
		now,
	).Scan(&t.ID)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert compliance transaction: %w", err)
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	return true, nil
}

// List returns the records matching filter, newest first.
func (r *TransactionsRepository) List(ctx context.Context, filter entities.ComplianceTransactionFilter) ([]entities.ComplianceTransaction, error) {
	builder := psql.Select(transactionColumns...).
		From("compliance_transactions").
		Where(sq.Expr("COALESCE(organization_id, '') = ?", filter.OrganizationID)).
		OrderBy("tx_timestamp DESC", "id DESC")

	if filter.MonitoredAddressID != 0 {
		builder = builder.Where(sq.Eq{"monitored_address_id": filter.MonitoredAddressID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	if filter.Since != nil {
		builder = builder.Where(sq.GtOrEq{"tx_timestamp": *filter.Since})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		builder = builder.Offset(filter.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build compliance transactions query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query compliance transactions: %w", err)
	}
	defer rows.Close()

	var result []entities.ComplianceTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate compliance transactions: %w", err)
	}

	return result, nil
}

// AssignReviewer moves an UNASSIGNED record to UNREVIEWED with reviewerID.
// The status guard makes concurrent listings assign a record at most once.
func (r *TransactionsRepository) AssignReviewer(ctx context.Context, t *entities.ComplianceTransaction) (bool, error) {
	history, err := json.Marshal(nonNilHistory(t.StatusHistory))
	if err != nil {
		return false, fmt.Errorf("failed to marshal status history: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE compliance_transactions
		    SET status = $1, reviewer_id = $2, status_history = $3, updated_at = NOW()
		  WHERE id = $4 AND status = $5`,
		string(entities.StatusUnreviewed), t.ReviewerID, history, t.ID, string(entities.StatusUnassigned))
	if err != nil {
		return false, fmt.Errorf("failed to assign reviewer: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// WithinTransaction runs fn in a database transaction.
func (r *TransactionsRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.transactor.WithinTransaction(ctx, fn)
}

func scanTransaction(row pgx.Row) (*entities.ComplianceTransaction, error) {
	var (
		t         entities.ComplianceTransaction
		amount    string
		status    string
		history   []byte
		entityIDs []string
		scores    []int
	)

	err := row.Scan(
		&t.ID,
		&t.TxID,
		&t.MonitoredAddressID,
		&t.OrganizationID,
		&entityIDs,
		&amount,
		&t.Timestamp,
		&scores,
		&status,
		&t.ReviewerID,
		&history,
		&t.Notes,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan compliance transaction: %w", err)
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q for compliance transaction %d: %w", amount, t.ID, err)
	}
	if len(history) > 0 {
		if err = json.Unmarshal(history, &t.StatusHistory); err != nil {
			return nil, fmt.Errorf("invalid status history for compliance transaction %d: %w", t.ID, err)
		}
	}

	t.Status = entities.TransactionStatus(status)
	t.CounterpartyEntities = entityIDs
	t.RiskScores = scores
	return &t, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

func nonNilHistory(h []entities.StatusChange) []entities.StatusChange {
	if h == nil {
		return []entities.StatusChange{}
	}
	return h
}
