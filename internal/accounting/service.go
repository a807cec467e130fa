package accounting

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/leftcoastfs/bridge-backend/pkg/books"
	"github.com/leftcoastfs/bridge-backend/pkg/db/models"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

const (
	accountTypeBank      = "Bank"
	accountSubTypeCheck  = "Checking"
	accountTypeEquity    = "Equity"
	accountSubTypeEquity = "OpeningBalanceEquity"
	accountTypePayable   = "Accounts Payable"
)

// ledgerClient is the slice of the books client the gateway uses.
type ledgerClient interface {
	Authenticate(ctx context.Context, companyID, refreshToken string) (*books.AuthResult, error)
	QueryAccounts(ctx context.Context, session *books.Session, filter books.AccountFilter) ([]books.Account, error)
	CreateAccount(ctx context.Context, session *books.Session, params books.AccountCreateParams) (*books.Account, error)
	QueryVendors(ctx context.Context, session *books.Session, filter books.VendorFilter) ([]books.Vendor, error)
	CreateVendor(ctx context.Context, session *books.Session, displayName string) (*books.Vendor, error)
	UpdateVendor(ctx context.Context, session *books.Session, params books.VendorUpdateParams) (*books.Vendor, error)
	QueryCustomers(ctx context.Context, session *books.Session, filter books.CustomerFilter) ([]books.Customer, error)
	CreateCustomer(ctx context.Context, session *books.Session, displayName string) (*books.Customer, error)
	QueryDepositsTo(ctx context.Context, session *books.Session, toAccountID string) ([]books.Deposit, error)
	CreatePurchase(ctx context.Context, session *books.Session, params books.PurchaseCreateParams) (*books.Purchase, error)
	CreatePayment(ctx context.Context, session *books.Session, params books.PaymentCreateParams) (*books.Payment, error)
	CreateDeposit(ctx context.Context, session *books.Session, params books.DepositCreateParams) (*books.Deposit, error)
	CreateBill(ctx context.Context, session *books.Session, params books.BillCreateParams) (*books.Bill, error)
	CreateBillPayment(ctx context.Context, session *books.Session, params books.BillPaymentCreateParams) (*books.BillPayment, error)
}

// credentialStore persists rotated accounting credentials.
type credentialStore interface {
	RotateRefreshToken(ctx context.Context, userID, companyID, refreshToken string) error
}

// ServiceParams groups dependencies for the accounting gateway.
type ServiceParams struct {
	Books     ledgerClient
	Directory credentialStore
	Logger    *logger.Logger
}

// Service wraps the accounting ledger with the find-or-create and posting
// workflows the rest of the system composes.
type Service struct {
	books     ledgerClient
	directory credentialStore
	logger    *logger.Logger
}

// NewService builds the accounting gateway.
func NewService(params ServiceParams) (*Service, error) {
	if params.Books == nil {
		return nil, errors.New("books client is required")
	}
	if params.Directory == nil {
		return nil, errors.New("directory store is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		books:     params.Books,
		directory: params.Directory,
		logger:    params.Logger,
	}, nil
}

// Authenticate rotates the record's accounting credential and persists the
// rotated token before handing the session out. If persistence fails the
// session is withheld; using it would orphan the stored credential.
func (s *Service) Authenticate(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error) {
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "directory record is required")
	}

	result, err := s.books.Authenticate(ctx, record.CompanyID, record.AccountingRefreshToken)
	if err != nil {
		return nil, err
	}

	if err := s.directory.RotateRefreshToken(ctx, record.UserID, record.CompanyID, result.RefreshToken); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist rotated refresh token")
	}
	record.AccountingRefreshToken = result.RefreshToken

	return result.Session, nil
}

// FindAccount returns the account with the exact name, or nil when absent.
func (s *Service) FindAccount(ctx context.Context, session *books.Session, name string) (*books.Account, error) {
	accounts, err := s.books.QueryAccounts(ctx, session, books.AccountFilter{Name: name})
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// EnsureAccount finds the named account or creates it, reporting whether a
// create happened. A create that loses a race to another creator is recovered
// by re-querying; the winner's account is returned as found, not created.
func (s *Service) EnsureAccount(ctx context.Context, session *books.Session, name, accountType, accountSubType string) (*books.Account, bool, error) {
	account, err := s.FindAccount(ctx, session, name)
	if err != nil {
		return nil, false, err
	}
	if account != nil {
		return account, false, nil
	}

	created, err := s.books.CreateAccount(ctx, session, books.AccountCreateParams{
		Name:           name,
		AccountType:    accountType,
		AccountSubType: accountSubType,
	})
	if err == nil {
		return created, true, nil
	}
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		return nil, false, err
	}

	// Lost the create race; the account must exist now.
	account, findErr := s.FindAccount(ctx, session, name)
	if findErr != nil {
		return nil, false, findErr
	}
	if account == nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err,
			fmt.Sprintf("account %q conflicted on create but is not queryable", name))
	}
	return account, false, nil
}

// EnsureBridgeAccount finds or creates the bridging bank account.
func (s *Service) EnsureBridgeAccount(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
	return s.EnsureAccount(ctx, session, name, accountTypeBank, accountSubTypeCheck)
}

// EnsureEquityAccount finds or creates the opening-balance equity account
// deposits are funded from.
func (s *Service) EnsureEquityAccount(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
	return s.EnsureAccount(ctx, session, name, accountTypeEquity, accountSubTypeEquity)
}

// EnsureVendor resolves a vendor for the display name. An active exact match
// wins; failing that, an inactive vendor whose name begins with the display
// name is reactivated and renamed back (the ledger suffixes deactivated names
// to free them up); otherwise a fresh vendor is created.
func (s *Service) EnsureVendor(ctx context.Context, session *books.Session, displayName string) (*books.Vendor, error) {
	active := true
	vendors, err := s.books.QueryVendors(ctx, session, books.VendorFilter{DisplayName: displayName, Active: &active})
	if err != nil {
		return nil, err
	}
	if len(vendors) > 0 {
		return &vendors[0], nil
	}

	inactive := false
	dormant, err := s.books.QueryVendors(ctx, session, books.VendorFilter{DisplayNamePrefix: displayName, Active: &inactive})
	if err != nil {
		return nil, err
	}
	if len(dormant) > 0 {
		reactivate := true
		vendor, err := s.books.UpdateVendor(ctx, session, books.VendorUpdateParams{
			ID:          dormant[0].ID,
			SyncToken:   dormant[0].SyncToken,
			DisplayName: displayName,
			Active:      &reactivate,
		})
		if err != nil {
			return nil, err
		}
		return vendor, nil
	}

	vendor, err := s.books.CreateVendor(ctx, session, displayName)
	if err == nil {
		return vendor, nil
	}
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		return nil, err
	}
	vendors, findErr := s.books.QueryVendors(ctx, session, books.VendorFilter{DisplayName: displayName})
	if findErr != nil {
		return nil, findErr
	}
	if len(vendors) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err,
			fmt.Sprintf("vendor %q conflicted on create but is not queryable", displayName))
	}
	return &vendors[0], nil
}

// EnsureCustomer resolves a customer for the display name, creating one when
// no active match exists.
func (s *Service) EnsureCustomer(ctx context.Context, session *books.Session, displayName string) (*books.Customer, error) {
	active := true
	customers, err := s.books.QueryCustomers(ctx, session, books.CustomerFilter{DisplayName: displayName, Active: &active})
	if err != nil {
		return nil, err
	}
	if len(customers) > 0 {
		return &customers[0], nil
	}

	customer, err := s.books.CreateCustomer(ctx, session, displayName)
	if err == nil {
		return customer, nil
	}
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		return nil, err
	}
	customers, findErr := s.books.QueryCustomers(ctx, session, books.CustomerFilter{DisplayName: displayName})
	if findErr != nil {
		return nil, findErr
	}
	if len(customers) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err,
			fmt.Sprintf("customer %q conflicted on create but is not queryable", displayName))
	}
	return &customers[0], nil
}

// PostPurchase records an outgoing payment as a Check expense drawn on the
// bridging account. The expense line books against Accounts Payable.
func (s *Service) PostPurchase(ctx context.Context, session *books.Session, bridgeAccountID, vendorID string, amount decimal.Decimal, description string) (*books.Purchase, error) {
	payable, _, err := s.EnsureAccount(ctx, session, accountTypePayable, accountTypePayable, "AccountsPayable")
	if err != nil {
		return nil, err
	}
	return s.books.CreatePurchase(ctx, session, books.PurchaseCreateParams{
		PaymentAccountID: bridgeAccountID,
		ExpenseAccountID: payable.ID,
		VendorID:         vendorID,
		Amount:           amount,
		PrivateNote:      description,
	})
}

// PostBilledPurchase records the outgoing payment as a Bill settled by a
// check BillPayment, for companies that track obligations before settlement.
func (s *Service) PostBilledPurchase(ctx context.Context, session *books.Session, bridgeAccountID, vendorID string, amount decimal.Decimal, description string) (*books.BillPayment, error) {
	payable, _, err := s.EnsureAccount(ctx, session, accountTypePayable, accountTypePayable, "AccountsPayable")
	if err != nil {
		return nil, err
	}
	bill, err := s.books.CreateBill(ctx, session, books.BillCreateParams{
		VendorID:         vendorID,
		ExpenseAccountID: payable.ID,
		Amount:           amount,
	})
	if err != nil {
		return nil, err
	}
	return s.books.CreateBillPayment(ctx, session, books.BillPaymentCreateParams{
		VendorID:      vendorID,
		BillID:        bill.ID,
		BankAccountID: bridgeAccountID,
		Amount:        amount,
	})
}

// PostPayment records an incoming payment as a receipt deposited into the
// bridging account.
func (s *Service) PostPayment(ctx context.Context, session *books.Session, bridgeAccountID, customerID string, amount decimal.Decimal, description string) (*books.Payment, error) {
	return s.books.CreatePayment(ctx, session, books.PaymentCreateParams{
		CustomerID:         customerID,
		DepositToAccountID: bridgeAccountID,
		Amount:             amount,
		PrivateNote:        description,
	})
}

// PostDeposit funds an account from the equity source.
func (s *Service) PostDeposit(ctx context.Context, session *books.Session, equityAccountID, targetAccountID string, amount decimal.Decimal, note string) (*books.Deposit, error) {
	return s.books.CreateDeposit(ctx, session, books.DepositCreateParams{
		FromAccountID: equityAccountID,
		ToAccountID:   targetAccountID,
		Amount:        amount,
		PrivateNote:   note,
	})
}

// HasFundingDeposit reports whether any deposit targets the account.
func (s *Service) HasFundingDeposit(ctx context.Context, session *books.Session, accountID string) (bool, error) {
	deposits, err := s.books.QueryDepositsTo(ctx, session, accountID)
	if err != nil {
		return false, err
	}
	return len(deposits) > 0, nil
}
