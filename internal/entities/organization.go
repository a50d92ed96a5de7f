package entities

import "github.com/shopspring/decimal"

// Member is a user belonging to an organization.
type Member struct {
	UserID string `db:"user_id" json:"user_id"`
	Role   string `db:"role"    json:"role"`
	Active bool   `db:"active"  json:"active"`
}

// Organization holds the screening settings of a compliance team.
type Organization struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	RiskScoreThreshold   int             `json:"risk_score_threshold"`
	TransactionThreshold decimal.Decimal `json:"transaction_threshold"`
	Members              []Member        `json:"members"`
}

// ActiveMembers returns the members that can be assigned work.
func (o *Organization) ActiveMembers() []Member {
	active := make([]Member, 0, len(o.Members))
	for _, m := range o.Members {
		if m.Active {
			active = append(active, m)
		}
	}
	return active
}
