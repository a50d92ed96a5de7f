package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the review state of a compliance transaction.
type TransactionStatus string

const (
	StatusUnassigned     TransactionStatus = "UNASSIGNED"
	StatusUnreviewed     TransactionStatus = "UNREVIEWED"
	StatusUnderReview    TransactionStatus = "UNDER_REVIEW"
	StatusEscalated      TransactionStatus = "ESCALATED"
	StatusClosed         TransactionStatus = "CLOSED"
	StatusClosedWithNote TransactionStatus = "CLOSED_WITH_NOTE"
)

// Auto-triage notes.
const (
	NoteRiskBelowThreshold   = "Risk score below threshold"
	NoteAmountBelowThreshold = "Amount below threshold"
)

// StatusChange is a prior (status, reviewer) pair kept when a record is reassigned.
type StatusChange struct {
	Status     TransactionStatus `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	ReviewerID string            `json:"reviewer_id"`
}

// ComplianceTransaction is a screened transaction awaiting (or closed by) review.
// (TxID, MonitoredAddressID, OrganizationID) is unique.
type ComplianceTransaction struct {
	ID                   int64             `json:"id"`
	TxID                 string            `json:"tx_id"`
	MonitoredAddressID   int64             `json:"monitored_address_id"`
	OrganizationID       *string           `json:"organization_id,omitempty"`
	CounterpartyEntities []string          `json:"counterparty_entities"`
	Amount               decimal.Decimal   `json:"amount"`
	Timestamp            time.Time         `json:"timestamp"`
	RiskScores           []int             `json:"risk_scores"`
	Status               TransactionStatus `json:"status"`
	ReviewerID           *string           `json:"reviewer_id,omitempty"`
	StatusHistory        []StatusChange    `json:"status_history"`
	Notes                string            `json:"notes,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// ComplianceTransactionFilter narrows an organization listing.
type ComplianceTransactionFilter struct {
	OrganizationID     string
	MonitoredAddressID int64
	Statuses           []TransactionStatus
	Since              *time.Time
	Limit              uint64
	Offset             uint64
}
