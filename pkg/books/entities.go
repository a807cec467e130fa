package books

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
)

// escapeQueryValue doubles single quotes so user-supplied names cannot break
// out of the statement's string literal.
func escapeQueryValue(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func boolLiteral(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// QueryAccounts returns the accounts matching the filter, oldest first as the
// ledger returns them.
func (c *Client) QueryAccounts(ctx context.Context, session *Session, filter AccountFilter) ([]Account, error) {
	var clauses []string
	if filter.Name != "" {
		clauses = append(clauses, fmt.Sprintf("Name = '%s'", escapeQueryValue(filter.Name)))
	}
	if filter.AccountType != "" {
		clauses = append(clauses, fmt.Sprintf("AccountType = '%s'", escapeQueryValue(filter.AccountType)))
	}
	if filter.AccountSubType != "" {
		clauses = append(clauses, fmt.Sprintf("AccountSubType = '%s'", escapeQueryValue(filter.AccountSubType)))
	}
	if filter.Active != nil {
		clauses = append(clauses, "Active = "+boolLiteral(*filter.Active))
	}

	statement := "select * from Account"
	if len(clauses) > 0 {
		statement += " where " + strings.Join(clauses, " and ")
	}

	var accounts []Account
	if err := c.query(ctx, session, "Account", statement, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// CreateAccount registers a new account. A name collision with an existing
// account surfaces as a conflict error.
func (c *Client) CreateAccount(ctx context.Context, session *Session, params AccountCreateParams) (*Account, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account name is required")
	}

	payload := map[string]any{
		"Name":        params.Name,
		"AccountType": params.AccountType,
	}
	if params.AccountSubType != "" {
		payload["AccountSubType"] = params.AccountSubType
	}

	var account Account
	if err := c.create(ctx, session, "Account", payload, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// QueryVendors returns vendors matching the filter. DisplayNamePrefix uses
// the ledger's LIKE operator and matches names beginning with the prefix.
func (c *Client) QueryVendors(ctx context.Context, session *Session, filter VendorFilter) ([]Vendor, error) {
	var clauses []string
	if filter.DisplayName != "" {
		clauses = append(clauses, fmt.Sprintf("DisplayName = '%s'", escapeQueryValue(filter.DisplayName)))
	}
	if filter.DisplayNamePrefix != "" {
		clauses = append(clauses, fmt.Sprintf("DisplayName like '%s%%'", escapeQueryValue(filter.DisplayNamePrefix)))
	}
	if filter.Active != nil {
		clauses = append(clauses, "Active = "+boolLiteral(*filter.Active))
	}

	statement := "select * from Vendor"
	if len(clauses) > 0 {
		statement += " where " + strings.Join(clauses, " and ")
	}

	var vendors []Vendor
	if err := c.query(ctx, session, "Vendor", statement, &vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}

// CreateVendor registers a vendor under the given display name.
func (c *Client) CreateVendor(ctx context.Context, session *Session, displayName string) (*Vendor, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor display name is required")
	}

	var vendor Vendor
	payload := map[string]any{"DisplayName": displayName}
	if err := c.create(ctx, session, "Vendor", payload, &vendor); err != nil {
		return nil, err
	}
	return &vendor, nil
}

// UpdateVendor sparse-updates a vendor. Only the fields set in params are
// sent; the ledger keeps everything else as is.
func (c *Client) UpdateVendor(ctx context.Context, session *Session, params VendorUpdateParams) (*Vendor, error) {
	if params.ID == "" || params.SyncToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id and sync token are required")
	}

	payload := map[string]any{
		"Id":        params.ID,
		"SyncToken": params.SyncToken,
		"sparse":    true,
	}
	if params.DisplayName != "" {
		payload["DisplayName"] = params.DisplayName
	}
	if params.Active != nil {
		payload["Active"] = *params.Active
	}

	var vendor Vendor
	if err := c.create(ctx, session, "Vendor", payload, &vendor); err != nil {
		return nil, err
	}
	return &vendor, nil
}

// QueryCustomers returns customers matching the filter.
func (c *Client) QueryCustomers(ctx context.Context, session *Session, filter CustomerFilter) ([]Customer, error) {
	var clauses []string
	if filter.DisplayName != "" {
		clauses = append(clauses, fmt.Sprintf("DisplayName = '%s'", escapeQueryValue(filter.DisplayName)))
	}
	if filter.Active != nil {
		clauses = append(clauses, "Active = "+boolLiteral(*filter.Active))
	}

	statement := "select * from Customer"
	if len(clauses) > 0 {
		statement += " where " + strings.Join(clauses, " and ")
	}

	var customers []Customer
	if err := c.query(ctx, session, "Customer", statement, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// CreateCustomer registers a customer under the given display name.
func (c *Client) CreateCustomer(ctx context.Context, session *Session, displayName string) (*Customer, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer display name is required")
	}

	var customer Customer
	payload := map[string]any{"DisplayName": displayName}
	if err := c.create(ctx, session, "Customer", payload, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// QueryDepositsTo returns the deposits whose target is the given account.
func (c *Client) QueryDepositsTo(ctx context.Context, session *Session, toAccountID string) ([]Deposit, error) {
	if toAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit target account id is required")
	}

	statement := fmt.Sprintf("select * from Deposit where DepositToAccountRef = '%s'", escapeQueryValue(toAccountID))

	var deposits []Deposit
	if err := c.query(ctx, session, "Deposit", statement, &deposits); err != nil {
		return nil, err
	}
	return deposits, nil
}

// CreatePurchase posts a single-line Check expense drawn on the payment
// account against the expense account.
func (c *Client) CreatePurchase(ctx context.Context, session *Session, params PurchaseCreateParams) (*Purchase, error) {
	if params.PaymentAccountID == "" || params.ExpenseAccountID == "" || params.VendorID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase account and vendor refs are required")
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase amount must be positive")
	}

	payload := map[string]any{
		"PaymentType": "Check",
		"AccountRef":  Ref{Value: params.PaymentAccountID},
		"EntityRef":   Ref{Value: params.VendorID, Type: "Vendor"},
		"TotalAmt":    jsonAmount(params.Amount),
		"Line": []map[string]any{{
			"DetailType": "AccountBasedExpenseLineDetail",
			"Amount":     jsonAmount(params.Amount),
			"AccountBasedExpenseLineDetail": map[string]any{
				"AccountRef": Ref{Value: params.ExpenseAccountID},
			},
		}},
	}
	if params.PrivateNote != "" {
		payload["PrivateNote"] = params.PrivateNote
	}

	var purchase Purchase
	if err := c.create(ctx, session, "Purchase", payload, &purchase); err != nil {
		return nil, err
	}
	return &purchase, nil
}

// CreatePayment posts a customer receipt deposited into the target account.
func (c *Client) CreatePayment(ctx context.Context, session *Session, params PaymentCreateParams) (*Payment, error) {
	if params.CustomerID == "" || params.DepositToAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment customer and deposit account refs are required")
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	payload := map[string]any{
		"CustomerRef":         Ref{Value: params.CustomerID},
		"DepositToAccountRef": Ref{Value: params.DepositToAccountID},
		"TotalAmt":            jsonAmount(params.Amount),
	}
	if params.PrivateNote != "" {
		payload["PrivateNote"] = params.PrivateNote
	}

	var payment Payment
	if err := c.create(ctx, session, "Payment", payload, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreateDeposit moves funds from the source account into the target account.
func (c *Client) CreateDeposit(ctx context.Context, session *Session, params DepositCreateParams) (*Deposit, error) {
	if params.FromAccountID == "" || params.ToAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit account refs are required")
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must be positive")
	}

	payload := map[string]any{
		"DepositToAccountRef": Ref{Value: params.ToAccountID},
		"Line": []map[string]any{{
			"DetailType": "DepositLineDetail",
			"Amount":     jsonAmount(params.Amount),
			"DepositLineDetail": map[string]any{
				"AccountRef": Ref{Value: params.FromAccountID},
			},
		}},
	}
	if params.PrivateNote != "" {
		payload["PrivateNote"] = params.PrivateNote
	}

	var deposit Deposit
	if err := c.create(ctx, session, "Deposit", payload, &deposit); err != nil {
		return nil, err
	}
	return &deposit, nil
}

// CreateBill records an unpaid obligation to the vendor.
func (c *Client) CreateBill(ctx context.Context, session *Session, params BillCreateParams) (*Bill, error) {
	if params.VendorID == "" || params.ExpenseAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill vendor and expense refs are required")
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill amount must be positive")
	}

	payload := map[string]any{
		"VendorRef": Ref{Value: params.VendorID},
		"Line": []map[string]any{{
			"DetailType": "AccountBasedExpenseLineDetail",
			"Amount":     jsonAmount(params.Amount),
			"AccountBasedExpenseLineDetail": map[string]any{
				"AccountRef": Ref{Value: params.ExpenseAccountID},
			},
		}},
	}

	var bill Bill
	if err := c.create(ctx, session, "Bill", payload, &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

// CreateBillPayment pays an existing bill by check from the bank account.
func (c *Client) CreateBillPayment(ctx context.Context, session *Session, params BillPaymentCreateParams) (*BillPayment, error) {
	if params.VendorID == "" || params.BillID == "" || params.BankAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill payment refs are required")
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill payment amount must be positive")
	}

	payload := map[string]any{
		"VendorRef": Ref{Value: params.VendorID},
		"PayType":   "Check",
		"TotalAmt":  jsonAmount(params.Amount),
		"CheckPayment": map[string]any{
			"BankAccountRef": Ref{Value: params.BankAccountID},
		},
		"Line": []map[string]any{{
			"Amount": jsonAmount(params.Amount),
			"LinkedTxn": []map[string]any{{
				"TxnId":   params.BillID,
				"TxnType": "Bill",
			}},
		}},
	}

	var billPayment BillPayment
	if err := c.create(ctx, session, "BillPayment", payload, &billPayment); err != nil {
		return nil, err
	}
	return &billPayment, nil
}
