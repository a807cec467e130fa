package books

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Session carries the short-lived authorization for one company's ledger.
// Sessions are per (user, company) invocations and must not be shared across
// concurrent work for different companies.
type Session struct {
	CompanyID   string
	accessToken string
}

// AuthResult is the outcome of a refresh-token rotation. RefreshToken is the
// rotated-in credential and must be persisted before the session is used.
type AuthResult struct {
	Session      *Session
	RefreshToken string
	ExpiresIn    int
}

// Ref points at another ledger object by its assigned id.
type Ref struct {
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// Account is the slice of the remote Account entity the workflows read.
type Account struct {
	ID             string          `json:"Id"`
	SyncToken      string          `json:"SyncToken"`
	Name           string          `json:"Name"`
	AccountType    string          `json:"AccountType"`
	AccountSubType string          `json:"AccountSubType"`
	Active         bool            `json:"Active"`
	CurrentBalance decimal.Decimal `json:"CurrentBalance"`
}

// Vendor is the slice of the remote Vendor entity the workflows read.
type Vendor struct {
	ID          string `json:"Id"`
	SyncToken   string `json:"SyncToken"`
	DisplayName string `json:"DisplayName"`
	Active      bool   `json:"Active"`
}

// Customer is the slice of the remote Customer entity the workflows read.
type Customer struct {
	ID          string `json:"Id"`
	SyncToken   string `json:"SyncToken"`
	DisplayName string `json:"DisplayName"`
	Active      bool   `json:"Active"`
}

// Purchase is a posted expense transaction.
type Purchase struct {
	ID          string          `json:"Id"`
	PaymentType string          `json:"PaymentType"`
	TotalAmt    decimal.Decimal `json:"TotalAmt"`
	PrivateNote string          `json:"PrivateNote"`
}

// Payment is a posted receipt transaction.
type Payment struct {
	ID          string          `json:"Id"`
	TotalAmt    decimal.Decimal `json:"TotalAmt"`
	PrivateNote string          `json:"PrivateNote"`
}

// Deposit is a posted funding transaction.
type Deposit struct {
	ID       string          `json:"Id"`
	TotalAmt decimal.Decimal `json:"TotalAmt"`
}

// Bill is an unpaid vendor obligation.
type Bill struct {
	ID       string          `json:"Id"`
	TotalAmt decimal.Decimal `json:"TotalAmt"`
}

// BillPayment settles a previously created bill.
type BillPayment struct {
	ID       string          `json:"Id"`
	TotalAmt decimal.Decimal `json:"TotalAmt"`
}

// AccountFilter selects accounts by exact field match.
type AccountFilter struct {
	Name           string
	AccountType    string
	AccountSubType string
	Active         *bool
}

// VendorFilter selects vendors by exact DisplayName or by prefix.
type VendorFilter struct {
	DisplayName       string
	DisplayNamePrefix string
	Active            *bool
}

// CustomerFilter selects customers by exact DisplayName.
type CustomerFilter struct {
	DisplayName string
	Active      *bool
}

// AccountCreateParams names a new ledger account.
type AccountCreateParams struct {
	Name           string
	AccountType    string
	AccountSubType string
}

// VendorUpdateParams sparse-updates an existing vendor. SyncToken must carry
// the value read from the ledger or the update is rejected as stale.
type VendorUpdateParams struct {
	ID          string
	SyncToken   string
	DisplayName string
	Active      *bool
}

// PurchaseCreateParams describes a single-line Check expense.
type PurchaseCreateParams struct {
	PaymentAccountID string
	ExpenseAccountID string
	VendorID         string
	Amount           decimal.Decimal
	PrivateNote      string
}

// PaymentCreateParams describes a receipt into a deposit-target account.
type PaymentCreateParams struct {
	CustomerID         string
	DepositToAccountID string
	Amount             decimal.Decimal
	PrivateNote        string
}

// DepositCreateParams moves funds from an equity account into a target account.
type DepositCreateParams struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	PrivateNote   string
}

// BillCreateParams describes a single-line vendor bill.
type BillCreateParams struct {
	VendorID         string
	ExpenseAccountID string
	Amount           decimal.Decimal
}

// BillPaymentCreateParams pays a bill by check from a bank account.
type BillPaymentCreateParams struct {
	VendorID      string
	BillID        string
	BankAccountID string
	Amount        decimal.Decimal
}

// jsonAmount renders a decimal as a bare JSON number, which is what the
// ledger's API expects for amount fields.
func jsonAmount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
