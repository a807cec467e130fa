package relay

import (
	"github.com/shopspring/decimal"
)

// TransferEvent is the inbound wire event: a community-currency transfer
// between two users. It is never persisted.
type TransferEvent struct {
	FromUser    string          `json:"fromUser"`
	ToUser      string          `json:"toUser"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`

	// Billed selects the bill-then-pay settlement variant on the purchase
	// side instead of a direct check purchase.
	Billed bool `json:"billed,omitempty"`
}

// WorkItem is the per-company expansion of a TransferEvent. Purchase items
// carry the receiving counterparty in To; payment items carry the sending
// counterparty in From.
type WorkItem struct {
	User        string          `json:"user"`
	Company     string          `json:"company"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	To          string          `json:"to,omitempty"`
	From        string          `json:"from,omitempty"`
	Billed      bool            `json:"billed,omitempty"`
}
