package accounting

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/leftcoastfs/bridge-backend/pkg/books"
	"github.com/leftcoastfs/bridge-backend/pkg/db/models"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

type fakeLedger struct {
	authenticateFn      func(ctx context.Context, companyID, refreshToken string) (*books.AuthResult, error)
	queryAccountsFn     func(ctx context.Context, session *books.Session, filter books.AccountFilter) ([]books.Account, error)
	createAccountFn     func(ctx context.Context, session *books.Session, params books.AccountCreateParams) (*books.Account, error)
	queryVendorsFn      func(ctx context.Context, session *books.Session, filter books.VendorFilter) ([]books.Vendor, error)
	createVendorFn      func(ctx context.Context, session *books.Session, displayName string) (*books.Vendor, error)
	updateVendorFn      func(ctx context.Context, session *books.Session, params books.VendorUpdateParams) (*books.Vendor, error)
	queryCustomersFn    func(ctx context.Context, session *books.Session, filter books.CustomerFilter) ([]books.Customer, error)
	createCustomerFn    func(ctx context.Context, session *books.Session, displayName string) (*books.Customer, error)
	queryDepositsToFn   func(ctx context.Context, session *books.Session, toAccountID string) ([]books.Deposit, error)
	createPurchaseFn    func(ctx context.Context, session *books.Session, params books.PurchaseCreateParams) (*books.Purchase, error)
	createPaymentFn     func(ctx context.Context, session *books.Session, params books.PaymentCreateParams) (*books.Payment, error)
	createDepositFn     func(ctx context.Context, session *books.Session, params books.DepositCreateParams) (*books.Deposit, error)
	createBillFn        func(ctx context.Context, session *books.Session, params books.BillCreateParams) (*books.Bill, error)
	createBillPaymentFn func(ctx context.Context, session *books.Session, params books.BillPaymentCreateParams) (*books.BillPayment, error)
}

func (f *fakeLedger) Authenticate(ctx context.Context, companyID, refreshToken string) (*books.AuthResult, error) {
	return f.authenticateFn(ctx, companyID, refreshToken)
}

func (f *fakeLedger) QueryAccounts(ctx context.Context, session *books.Session, filter books.AccountFilter) ([]books.Account, error) {
	return f.queryAccountsFn(ctx, session, filter)
}

func (f *fakeLedger) CreateAccount(ctx context.Context, session *books.Session, params books.AccountCreateParams) (*books.Account, error) {
	return f.createAccountFn(ctx, session, params)
}

func (f *fakeLedger) QueryVendors(ctx context.Context, session *books.Session, filter books.VendorFilter) ([]books.Vendor, error) {
	return f.queryVendorsFn(ctx, session, filter)
}

func (f *fakeLedger) CreateVendor(ctx context.Context, session *books.Session, displayName string) (*books.Vendor, error) {
	return f.createVendorFn(ctx, session, displayName)
}

func (f *fakeLedger) UpdateVendor(ctx context.Context, session *books.Session, params books.VendorUpdateParams) (*books.Vendor, error) {
	return f.updateVendorFn(ctx, session, params)
}

func (f *fakeLedger) QueryCustomers(ctx context.Context, session *books.Session, filter books.CustomerFilter) ([]books.Customer, error) {
	return f.queryCustomersFn(ctx, session, filter)
}

func (f *fakeLedger) CreateCustomer(ctx context.Context, session *books.Session, displayName string) (*books.Customer, error) {
	return f.createCustomerFn(ctx, session, displayName)
}

func (f *fakeLedger) QueryDepositsTo(ctx context.Context, session *books.Session, toAccountID string) ([]books.Deposit, error) {
	return f.queryDepositsToFn(ctx, session, toAccountID)
}

func (f *fakeLedger) CreatePurchase(ctx context.Context, session *books.Session, params books.PurchaseCreateParams) (*books.Purchase, error) {
	return f.createPurchaseFn(ctx, session, params)
}

func (f *fakeLedger) CreatePayment(ctx context.Context, session *books.Session, params books.PaymentCreateParams) (*books.Payment, error) {
	return f.createPaymentFn(ctx, session, params)
}

func (f *fakeLedger) CreateDeposit(ctx context.Context, session *books.Session, params books.DepositCreateParams) (*books.Deposit, error) {
	return f.createDepositFn(ctx, session, params)
}

func (f *fakeLedger) CreateBill(ctx context.Context, session *books.Session, params books.BillCreateParams) (*books.Bill, error) {
	return f.createBillFn(ctx, session, params)
}

func (f *fakeLedger) CreateBillPayment(ctx context.Context, session *books.Session, params books.BillPaymentCreateParams) (*books.BillPayment, error) {
	return f.createBillPaymentFn(ctx, session, params)
}

type fakeCredentialStore struct {
	rotateFn func(ctx context.Context, userID, companyID, refreshToken string) error
}

func (f *fakeCredentialStore) RotateRefreshToken(ctx context.Context, userID, companyID, refreshToken string) error {
	return f.rotateFn(ctx, userID, companyID, refreshToken)
}

func newTestService(t *testing.T, ledger *fakeLedger, store *fakeCredentialStore) *Service {
	t.Helper()
	if store == nil {
		store = &fakeCredentialStore{
			rotateFn: func(ctx context.Context, userID, companyID, refreshToken string) error { return nil },
		}
	}
	logg := logger.New(logger.Options{ServiceName: "accounting-test", Level: zerolog.ErrorLevel, Output: io.Discard})
	svc, err := NewService(ServiceParams{Books: ledger, Directory: store, Logger: logg})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func testSession() *books.Session {
	return &books.Session{CompanyID: "realm-1"}
}

func TestAuthenticatePersistsRotatedToken(t *testing.T) {
	var persisted string
	ledger := &fakeLedger{
		authenticateFn: func(ctx context.Context, companyID, refreshToken string) (*books.AuthResult, error) {
			return &books.AuthResult{
				Session:      &books.Session{CompanyID: companyID},
				RefreshToken: "rotated",
			}, nil
		},
	}
	store := &fakeCredentialStore{
		rotateFn: func(ctx context.Context, userID, companyID, refreshToken string) error {
			persisted = refreshToken
			return nil
		},
	}
	svc := newTestService(t, ledger, store)

	record := &models.DirectoryRecord{UserID: "user-1", CompanyID: "realm-1", AccountingRefreshToken: "old"}
	session, err := svc.Authenticate(context.Background(), record)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if session == nil || session.CompanyID != "realm-1" {
		t.Fatalf("unexpected session %+v", session)
	}
	if persisted != "rotated" {
		t.Fatalf("expected rotated token persisted, got %q", persisted)
	}
	if record.AccountingRefreshToken != "rotated" {
		t.Fatalf("record not updated in memory: %q", record.AccountingRefreshToken)
	}
}

func TestAuthenticateWithholdsSessionOnPersistFailure(t *testing.T) {
	ledger := &fakeLedger{
		authenticateFn: func(ctx context.Context, companyID, refreshToken string) (*books.AuthResult, error) {
			return &books.AuthResult{Session: testSession(), RefreshToken: "rotated"}, nil
		},
	}
	store := &fakeCredentialStore{
		rotateFn: func(ctx context.Context, userID, companyID, refreshToken string) error {
			return pkgerrors.New(pkgerrors.CodeInternal, "db down")
		},
	}
	svc := newTestService(t, ledger, store)

	record := &models.DirectoryRecord{UserID: "user-1", CompanyID: "realm-1", AccountingRefreshToken: "old"}
	if _, err := svc.Authenticate(context.Background(), record); err == nil {
		t.Fatal("expected error when persistence fails")
	}
}

func TestEnsureAccountFindsExisting(t *testing.T) {
	ledger := &fakeLedger{
		queryAccountsFn: func(ctx context.Context, session *books.Session, filter books.AccountFilter) ([]books.Account, error) {
			return []books.Account{{ID: "35", Name: filter.Name}}, nil
		},
		createAccountFn: func(ctx context.Context, session *books.Session, params books.AccountCreateParams) (*books.Account, error) {
			t.Fatal("create must not run when the account exists")
			return nil, nil
		},
	}
	svc := newTestService(t, ledger, nil)

	account, created, err := svc.EnsureBridgeAccount(context.Background(), testSession(), "Left Coast Financial")
	if err != nil {
		t.Fatalf("EnsureBridgeAccount: %v", err)
	}
	if created {
		t.Fatal("expected found, not created")
	}
	if account.ID != "35" {
		t.Fatalf("unexpected account %+v", account)
	}
}

func TestEnsureAccountCreatesWhenMissing(t *testing.T) {
	var gotParams books.AccountCreateParams
	ledger := &fakeLedger{
		queryAccountsFn: func(ctx context.Context, session *books.Session, filter books.AccountFilter) ([]books.Account, error) {
			return nil, nil
		},
		createAccountFn: func(ctx context.Context, session *books.Session, params books.AccountCreateParams) (*books.Account, error) {
			gotParams = params
			return &books.Account{ID: "36", Name: params.Name}, nil
		},
	}
	svc := newTestService(t, ledger, nil)

	account, created, err := svc.EnsureBridgeAccount(context.Background(), testSession(), "Left Coast Financial")
	if err != nil {
		t.Fatalf("EnsureBridgeAccount: %v", err)
	}
	if !created || account.ID != "36" {
		t.Fatalf("expected fresh account, got created=%v account=%+v", created, account)
	}
	if gotParams.AccountType != "Bank" || gotParams.AccountSubType != "Checking" {
		t.Fatalf("unexpected create params %+v", gotParams)
	}
}

func TestEnsureAccountRecoversLostCreateRace(t *testing.T) {
	queries := 0
	ledger := &fakeLedger{
		queryAccountsFn: func(ctx context.Context, session *books.Session, filter books.AccountFilter) ([]books.Account, error) {
			queries++
			if queries == 1 {
				return nil, nil
			}
			return []books.Account{{ID: "37", Name: filter.Name}}, nil
		},
		createAccountFn: func(ctx context.Context, session *books.Session, params books.AccountCreateParams) (*books.Account, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "duplicate name")
		},
	}
	svc := newTestService(t, ledger, nil)

	account, created, err := svc.EnsureBridgeAccount(context.Background(), testSession(), "Left Coast Financial")
	if err != nil {
		t.Fatalf("EnsureBridgeAccount: %v", err)
	}
	if created {
		t.Fatal("race loser must report found, not created")
	}
	if account.ID != "37" {
		t.Fatalf("unexpected account %+v", account)
	}
}

func TestEnsureVendorReactivatesDormant(t *testing.T) {
	var updated books.VendorUpdateParams
	ledger := &fakeLedger{
		queryVendorsFn: func(ctx context.Context, session *books.Session, filter books.VendorFilter) ([]books.Vendor, error) {
			if filter.Active != nil && *filter.Active {
				return nil, nil
			}
			return []books.Vendor{{ID: "12", SyncToken: "3", DisplayName: "Acme (deleted)", Active: false}}, nil
		},
		updateVendorFn: func(ctx context.Context, session *books.Session, params books.VendorUpdateParams) (*books.Vendor, error) {
			updated = params
			return &books.Vendor{ID: params.ID, DisplayName: params.DisplayName, Active: true}, nil
		},
	}
	svc := newTestService(t, ledger, nil)

	vendor, err := svc.EnsureVendor(context.Background(), testSession(), "Acme")
	if err != nil {
		t.Fatalf("EnsureVendor: %v", err)
	}
	if vendor.ID != "12" || !vendor.Active {
		t.Fatalf("unexpected vendor %+v", vendor)
	}
	if updated.SyncToken != "3" || updated.DisplayName != "Acme" || updated.Active == nil || !*updated.Active {
		t.Fatalf("unexpected update params %+v", updated)
	}
}

func TestEnsureVendorCreatesWhenAbsent(t *testing.T) {
	ledger := &fakeLedger{
		queryVendorsFn: func(ctx context.Context, session *books.Session, filter books.VendorFilter) ([]books.Vendor, error) {
			return nil, nil
		},
		createVendorFn: func(ctx context.Context, session *books.Session, displayName string) (*books.Vendor, error) {
			return &books.Vendor{ID: "13", DisplayName: displayName, Active: true}, nil
		},
	}
	svc := newTestService(t, ledger, nil)

	vendor, err := svc.EnsureVendor(context.Background(), testSession(), "Acme")
	if err != nil {
		t.Fatalf("EnsureVendor: %v", err)
	}
	if vendor.ID != "13" {
		t.Fatalf("unexpected vendor %+v", vendor)
	}
}

func TestEnsureCustomerFindsActive(t *testing.T) {
	ledger := &fakeLedger{
		queryCustomersFn: func(ctx context.Context, session *books.Session, filter books.CustomerFilter) ([]books.Customer, error) {
			return []books.Customer{{ID: "21", DisplayName: filter.DisplayName, Active: true}}, nil
		},
		createCustomerFn: func(ctx context.Context, session *books.Session, displayName string) (*books.Customer, error) {
			t.Fatal("create must not run when the customer exists")
			return nil, nil
		},
	}
	svc := newTestService(t, ledger, nil)

	customer, err := svc.EnsureCustomer(context.Background(), testSession(), "Beatrice")
	if err != nil {
		t.Fatalf("EnsureCustomer: %v", err)
	}
	if customer.ID != "21" {
		t.Fatalf("unexpected customer %+v", customer)
	}
}

func TestPostPurchaseBooksAgainstPayable(t *testing.T) {
	var gotPurchase books.PurchaseCreateParams
	ledger := &fakeLedger{
		queryAccountsFn: func(ctx context.Context, session *books.Session, filter books.AccountFilter) ([]books.Account, error) {
			return []books.Account{{ID: "60", Name: filter.Name}}, nil
		},
		createPurchaseFn: func(ctx context.Context, session *books.Session, params books.PurchaseCreateParams) (*books.Purchase, error) {
			gotPurchase = params
			return &books.Purchase{ID: "201", PaymentType: "Check", TotalAmt: params.Amount}, nil
		},
	}
	svc := newTestService(t, ledger, nil)

	amount := decimal.RequireFromString("42.10")
	purchase, err := svc.PostPurchase(context.Background(), testSession(), "35", "12", amount, "transfer tx-1")
	if err != nil {
		t.Fatalf("PostPurchase: %v", err)
	}
	if purchase.ID != "201" {
		t.Fatalf("unexpected purchase %+v", purchase)
	}
	if gotPurchase.PaymentAccountID != "35" || gotPurchase.ExpenseAccountID != "60" || gotPurchase.VendorID != "12" {
		t.Fatalf("unexpected params %+v", gotPurchase)
	}
	if gotPurchase.PrivateNote != "transfer tx-1" {
		t.Fatalf("missing private note: %+v", gotPurchase)
	}
}

func TestPostBilledPurchaseLinksBill(t *testing.T) {
	var gotBillPayment books.BillPaymentCreateParams
	ledger := &fakeLedger{
		queryAccountsFn: func(ctx context.Context, session *books.Session, filter books.AccountFilter) ([]books.Account, error) {
			return []books.Account{{ID: "60"}}, nil
		},
		createBillFn: func(ctx context.Context, session *books.Session, params books.BillCreateParams) (*books.Bill, error) {
			return &books.Bill{ID: "301", TotalAmt: params.Amount}, nil
		},
		createBillPaymentFn: func(ctx context.Context, session *books.Session, params books.BillPaymentCreateParams) (*books.BillPayment, error) {
			gotBillPayment = params
			return &books.BillPayment{ID: "302", TotalAmt: params.Amount}, nil
		},
	}
	svc := newTestService(t, ledger, nil)

	amount := decimal.RequireFromString("10")
	result, err := svc.PostBilledPurchase(context.Background(), testSession(), "35", "12", amount, "billed transfer")
	if err != nil {
		t.Fatalf("PostBilledPurchase: %v", err)
	}
	if result.ID != "302" {
		t.Fatalf("unexpected bill payment %+v", result)
	}
	if gotBillPayment.BillID != "301" || gotBillPayment.BankAccountID != "35" {
		t.Fatalf("bill payment not linked: %+v", gotBillPayment)
	}
}

func TestHasFundingDeposit(t *testing.T) {
	ledger := &fakeLedger{
		queryDepositsToFn: func(ctx context.Context, session *books.Session, toAccountID string) ([]books.Deposit, error) {
			if toAccountID == "35" {
				return []books.Deposit{{ID: "401"}}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(t, ledger, nil)

	funded, err := svc.HasFundingDeposit(context.Background(), testSession(), "35")
	if err != nil || !funded {
		t.Fatalf("expected funded account, got %v %v", funded, err)
	}
	funded, err = svc.HasFundingDeposit(context.Background(), testSession(), "99")
	if err != nil || funded {
		t.Fatalf("expected unfunded account, got %v %v", funded, err)
	}
}
