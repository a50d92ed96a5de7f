package entities

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TagOFACSanctioned is the classification that forces maximum risk.
const TagOFACSanctioned = "ofac sanctioned"

// Attribution links an address to the entity believed to control it.
type Attribution struct {
	Address           string `db:"address"             json:"address"`
	EntityID          string `db:"entity_id"           json:"entity_id"`
	BeneficialOwnerID string `db:"beneficial_owner_id" json:"beneficial_owner_id,omitempty"`
	CustodianID       string `db:"custodian_id"        json:"custodian_id,omitempty"`
	ScriptType        string `db:"script_type"         json:"script_type,omitempty"`
	CospendID         string `db:"cospend_id"          json:"cospend_id,omitempty"`
}

// EntityRecord is the source-of-truth record of an attributed entity.
type EntityRecord struct {
	ID         string   `json:"id"`
	ProperName string   `json:"proper_name"`
	EntityType string   `json:"entity_type"`
	Tags       []string `json:"tags"`
	Countries  []string `json:"countries"`
	NoKYC      bool     `json:"no_kyc"`
	OFAC       bool     `json:"ofac"`
}

// IsSanctioned reports whether the entity carries an OFAC classification.
func (e *EntityRecord) IsSanctioned() bool {
	if e == nil {
		return false
	}
	if e.OFAC {
		return true
	}
	for _, tag := range e.Tags {
		if NormalizeTag(tag) == TagOFACSanctioned {
			return true
		}
	}
	return false
}

// NormalizeTag lowercases a tag and folds "-" / "_" separators to spaces,
// so "OFAC-Sanctioned" and "ofac sanctioned" compare equal.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return strings.NewReplacer("-", " ", "_", " ").Replace(tag)
}

// JurisdictionRisk is a row of the jurisdiction reference table.
type JurisdictionRisk struct {
	Country   string  `db:"country"    json:"country"`
	RiskScore float64 `db:"risk_score" json:"risk_score"`
	FATFBlack bool    `db:"fatf_black" json:"fatf_black"`
	FATFGray  bool    `db:"fatf_gray"  json:"fatf_gray"`
}

// TxIO is one input or output of a chain transaction.
type TxIO struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// FeedTransaction is a transaction as returned by the blockchain feed.
type FeedTransaction struct {
	TxID      string `json:"tx_id"`
	Inputs    []TxIO `json:"inputs"`
	Outputs   []TxIO `json:"outputs"`
	Timestamp int64  `json:"timestamp"`
}

// ReceivedBy sums the outputs paid to address.
func (t FeedTransaction) ReceivedBy(address string) decimal.Decimal {
	total := decimal.Zero
	for _, out := range t.Outputs {
		if out.Address == address {
			total = total.Add(out.Amount)
		}
	}
	return total
}

// FeedPage is one page of feed results.
type FeedPage struct {
	Transactions []FeedTransaction
	NextCursor   string
}

// PageRequest selects a page of feed results.
type PageRequest struct {
	Limit  int
	Cursor string
}
