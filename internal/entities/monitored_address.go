package entities

import "time"

// Supported blockchains for monitored addresses.
const (
	BlockchainBitcoin  = "bitcoin"
	BlockchainLitecoin = "litecoin"
	BlockchainEthereum = "ethereum"
	BlockchainBSC      = "bsc"
	BlockchainSolana   = "solana"
)

// MonitoredAddress is an address on the compliance watch-list.
type MonitoredAddress struct {
	ID             int64     `db:"id"              json:"id"`
	Address        string    `db:"address"         json:"address"`
	Blockchain     string    `db:"blockchain"      json:"blockchain"`
	ClientID       string    `db:"client_id"       json:"client_id"`
	OrganizationID *string   `db:"organization_id" json:"organization_id,omitempty"`
	Notes          string    `db:"notes"           json:"notes,omitempty"`
	Active         bool      `db:"active"          json:"active"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}

// OrganizationKey returns the organization id, or "" for individual use.
func (a MonitoredAddress) OrganizationKey() string {
	if a.OrganizationID == nil {
		return ""
	}
	return *a.OrganizationID
}
