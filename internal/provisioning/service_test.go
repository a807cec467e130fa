package provisioning

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/leftcoastfs/bridge-backend/pkg/books"
	"github.com/leftcoastfs/bridge-backend/pkg/db/models"
	"github.com/leftcoastfs/bridge-backend/pkg/enums"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

type fakeGateway struct {
	authenticateFn      func(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error)
	ensureBridgeFn      func(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error)
	ensureEquityFn      func(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error)
	postDepositFn       func(ctx context.Context, session *books.Session, equityAccountID, targetAccountID string, amount decimal.Decimal, note string) (*books.Deposit, error)
	hasFundingDepositFn func(ctx context.Context, session *books.Session, accountID string) (bool, error)
}

func (f *fakeGateway) Authenticate(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error) {
	return f.authenticateFn(ctx, record)
}

func (f *fakeGateway) EnsureBridgeAccount(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
	return f.ensureBridgeFn(ctx, session, name)
}

func (f *fakeGateway) EnsureEquityAccount(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
	return f.ensureEquityFn(ctx, session, name)
}

func (f *fakeGateway) PostDeposit(ctx context.Context, session *books.Session, equityAccountID, targetAccountID string, amount decimal.Decimal, note string) (*books.Deposit, error) {
	return f.postDepositFn(ctx, session, equityAccountID, targetAccountID, amount, note)
}

func (f *fakeGateway) HasFundingDeposit(ctx context.Context, session *books.Session, accountID string) (bool, error) {
	return f.hasFundingDepositFn(ctx, session, accountID)
}

type fakeBalances struct {
	balanceFn func(ctx context.Context, userID, ledgerToken string) (decimal.Decimal, error)
}

func (f *fakeBalances) Balance(ctx context.Context, userID, ledgerToken string) (decimal.Decimal, error) {
	return f.balanceFn(ctx, userID, ledgerToken)
}

type fakeDirectory struct {
	lookupFn   func(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error)
	activateFn func(ctx context.Context, userID, companyID string) error
	activated  int
}

func (f *fakeDirectory) Lookup(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error) {
	return f.lookupFn(ctx, userID, companyID)
}

func (f *fakeDirectory) Activate(ctx context.Context, userID, companyID string) error {
	f.activated++
	if f.activateFn != nil {
		return f.activateFn(ctx, userID, companyID)
	}
	return nil
}

func pendingRecord() *models.DirectoryRecord {
	return &models.DirectoryRecord{
		UserID:                 "user-1",
		CompanyID:              "realm-1",
		AccountingRefreshToken: "rt",
		LedgerToken:            "lt",
		Status:                 enums.ProvisioningStatusPending,
	}
}

func newTestService(t *testing.T, gw *fakeGateway, balances *fakeBalances, dir *fakeDirectory) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "provisioning-test", Level: zerolog.ErrorLevel, Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Accounting:        gw,
		Currency:          balances,
		Directory:         dir,
		Logger:            logg,
		BridgeAccountName: "Left Coast Financial",
		EquityAccountName: "Opening Balance Equity",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestProvisionCreatesAndFunds(t *testing.T) {
	var depositAmount decimal.Decimal
	gw := &fakeGateway{
		authenticateFn: func(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error) {
			return &books.Session{CompanyID: record.CompanyID}, nil
		},
		ensureBridgeFn: func(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
			return &books.Account{ID: "35", Name: name}, true, nil
		},
		ensureEquityFn: func(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
			return &books.Account{ID: "90", Name: name}, false, nil
		},
		postDepositFn: func(ctx context.Context, session *books.Session, equityAccountID, targetAccountID string, amount decimal.Decimal, note string) (*books.Deposit, error) {
			if equityAccountID != "90" || targetAccountID != "35" {
				t.Fatalf("deposit wired to wrong accounts: %s -> %s", equityAccountID, targetAccountID)
			}
			depositAmount = amount
			return &books.Deposit{ID: "401", TotalAmt: amount}, nil
		},
	}
	balances := &fakeBalances{
		balanceFn: func(ctx context.Context, userID, ledgerToken string) (decimal.Decimal, error) {
			return decimal.RequireFromString("250.75"), nil
		},
	}
	dir := &fakeDirectory{
		lookupFn: func(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error) {
			return pendingRecord(), nil
		},
	}
	svc := newTestService(t, gw, balances, dir)

	result, err := svc.Provision(context.Background(), "user-1", "realm-1")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !result.AccountCreated || !result.Funded {
		t.Fatalf("expected create+fund, got %+v", result)
	}
	if !depositAmount.Equal(decimal.RequireFromString("250.75")) {
		t.Fatalf("unexpected deposit amount %s", depositAmount)
	}
	if result.Status != enums.ProvisioningStatusActive || dir.activated != 1 {
		t.Fatalf("record not activated: %+v activations=%d", result, dir.activated)
	}
}

func TestProvisionExistingUnfundedAccountIsFunded(t *testing.T) {
	deposited := false
	gw := &fakeGateway{
		authenticateFn: func(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error) {
			return &books.Session{CompanyID: record.CompanyID}, nil
		},
		ensureBridgeFn: func(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
			return &books.Account{ID: "35", Name: name}, false, nil
		},
		hasFundingDepositFn: func(ctx context.Context, session *books.Session, accountID string) (bool, error) {
			return false, nil
		},
		ensureEquityFn: func(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
			return &books.Account{ID: "90"}, false, nil
		},
		postDepositFn: func(ctx context.Context, session *books.Session, equityAccountID, targetAccountID string, amount decimal.Decimal, note string) (*books.Deposit, error) {
			deposited = true
			return &books.Deposit{ID: "401"}, nil
		},
	}
	balances := &fakeBalances{
		balanceFn: func(ctx context.Context, userID, ledgerToken string) (decimal.Decimal, error) {
			return decimal.NewFromInt(10), nil
		},
	}
	dir := &fakeDirectory{
		lookupFn: func(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error) {
			return pendingRecord(), nil
		},
	}
	svc := newTestService(t, gw, balances, dir)

	result, err := svc.Provision(context.Background(), "user-1", "realm-1")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !deposited || !result.Funded {
		t.Fatal("existing unfunded account must receive the deposit")
	}
}

func TestProvisionFundedAccountSkipsDeposit(t *testing.T) {
	gw := &fakeGateway{
		authenticateFn: func(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error) {
			return &books.Session{CompanyID: record.CompanyID}, nil
		},
		ensureBridgeFn: func(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
			return &books.Account{ID: "35"}, false, nil
		},
		hasFundingDepositFn: func(ctx context.Context, session *books.Session, accountID string) (bool, error) {
			return true, nil
		},
		postDepositFn: func(ctx context.Context, session *books.Session, equityAccountID, targetAccountID string, amount decimal.Decimal, note string) (*books.Deposit, error) {
			t.Fatal("deposit must not run for funded accounts")
			return nil, nil
		},
	}
	balances := &fakeBalances{
		balanceFn: func(ctx context.Context, userID, ledgerToken string) (decimal.Decimal, error) {
			t.Fatal("balance lookup must not run for funded accounts")
			return decimal.Zero, nil
		},
	}
	dir := &fakeDirectory{
		lookupFn: func(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error) {
			return pendingRecord(), nil
		},
	}
	svc := newTestService(t, gw, balances, dir)

	result, err := svc.Provision(context.Background(), "user-1", "realm-1")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if result.Funded {
		t.Fatal("already funded account must not be re-funded")
	}
	if dir.activated != 1 {
		t.Fatal("funded account must still activate")
	}
}

func TestProvisionZeroBalanceActivatesWithoutDeposit(t *testing.T) {
	gw := &fakeGateway{
		authenticateFn: func(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error) {
			return &books.Session{CompanyID: record.CompanyID}, nil
		},
		ensureBridgeFn: func(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
			return &books.Account{ID: "35"}, true, nil
		},
		postDepositFn: func(ctx context.Context, session *books.Session, equityAccountID, targetAccountID string, amount decimal.Decimal, note string) (*books.Deposit, error) {
			t.Fatal("deposit must not run for zero balances")
			return nil, nil
		},
	}
	balances := &fakeBalances{
		balanceFn: func(ctx context.Context, userID, ledgerToken string) (decimal.Decimal, error) {
			return decimal.Zero, nil
		},
	}
	dir := &fakeDirectory{
		lookupFn: func(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error) {
			return pendingRecord(), nil
		},
	}
	svc := newTestService(t, gw, balances, dir)

	result, err := svc.Provision(context.Background(), "user-1", "realm-1")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if result.Funded {
		t.Fatal("zero balance must not fund")
	}
	if result.Status != enums.ProvisioningStatusActive {
		t.Fatal("zero balance must still activate")
	}
}

func TestProvisionLedgerOutageLeavesStatusUntouched(t *testing.T) {
	gw := &fakeGateway{
		authenticateFn: func(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error) {
			return &books.Session{CompanyID: record.CompanyID}, nil
		},
		ensureBridgeFn: func(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error) {
			return &books.Account{ID: "35"}, true, nil
		},
	}
	balances := &fakeBalances{
		balanceFn: func(ctx context.Context, userID, ledgerToken string) (decimal.Decimal, error) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeLedgerUnavailable, "currency service down")
		},
	}
	dir := &fakeDirectory{
		lookupFn: func(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error) {
			return pendingRecord(), nil
		},
	}
	svc := newTestService(t, gw, balances, dir)

	_, err := svc.Provision(context.Background(), "user-1", "realm-1")
	if !pkgerrors.Is(err, pkgerrors.CodeLedgerUnavailable) {
		t.Fatalf("expected ledger unavailable, got %v", err)
	}
	if dir.activated != 0 {
		t.Fatal("failed provisioning must not activate the record")
	}
	if !pkgerrors.Retryable(err) {
		t.Fatal("outages must be retryable")
	}
}

func TestProvisionCredentialFailure(t *testing.T) {
	gw := &fakeGateway{
		authenticateFn: func(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error) {
			return nil, pkgerrors.New(pkgerrors.CodeCredential, "refresh token rejected")
		},
	}
	dir := &fakeDirectory{
		lookupFn: func(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error) {
			return pendingRecord(), nil
		},
	}
	svc := newTestService(t, gw, &fakeBalances{}, dir)

	_, err := svc.Provision(context.Background(), "user-1", "realm-1")
	if !pkgerrors.Is(err, pkgerrors.CodeCredential) {
		t.Fatalf("expected credential error, got %v", err)
	}
	if pkgerrors.Retryable(err) {
		t.Fatal("credential failures must not be retryable")
	}
	if dir.activated != 0 {
		t.Fatal("credential failure must not activate the record")
	}
}
