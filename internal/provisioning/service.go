package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/leftcoastfs/bridge-backend/pkg/books"
	"github.com/leftcoastfs/bridge-backend/pkg/db/models"
	"github.com/leftcoastfs/bridge-backend/pkg/enums"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

// gateway is the slice of the accounting service provisioning drives.
type gateway interface {
	Authenticate(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error)
	EnsureBridgeAccount(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error)
	EnsureEquityAccount(ctx context.Context, session *books.Session, name string) (*books.Account, bool, error)
	PostDeposit(ctx context.Context, session *books.Session, equityAccountID, targetAccountID string, amount decimal.Decimal, note string) (*books.Deposit, error)
	HasFundingDeposit(ctx context.Context, session *books.Session, accountID string) (bool, error)
}

// balanceReader reads community-currency balances.
type balanceReader interface {
	Balance(ctx context.Context, userID, ledgerToken string) (decimal.Decimal, error)
}

// directoryStore resolves and activates directory records.
type directoryStore interface {
	Lookup(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error)
	Activate(ctx context.Context, userID, companyID string) error
}

// ServiceParams groups dependencies for the provisioning workflow.
type ServiceParams struct {
	Accounting gateway
	Currency   balanceReader
	Directory  directoryStore
	Logger     *logger.Logger

	// BridgeAccountName is the bank account each company settles through.
	BridgeAccountName string
	EquityAccountName string
}

// Service runs the bridging-account provisioning workflow. The workflow is
// idempotent: a partially provisioned pairing picks up where the last attempt
// stopped, and the record's status only moves forward.
type Service struct {
	accounting        gateway
	currency          balanceReader
	directory         directoryStore
	logger            *logger.Logger
	bridgeAccountName string
	equityAccountName string
}

// NewService builds the provisioning workflow.
func NewService(params ServiceParams) (*Service, error) {
	if params.Accounting == nil {
		return nil, errors.New("accounting gateway is required")
	}
	if params.Currency == nil {
		return nil, errors.New("currency client is required")
	}
	if params.Directory == nil {
		return nil, errors.New("directory service is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.BridgeAccountName == "" || params.EquityAccountName == "" {
		return nil, errors.New("bridge and equity account names are required")
	}
	return &Service{
		accounting:        params.Accounting,
		currency:          params.Currency,
		directory:         params.Directory,
		logger:            params.Logger,
		bridgeAccountName: params.BridgeAccountName,
		equityAccountName: params.EquityAccountName,
	}, nil
}

// Result describes what a provisioning run did.
type Result struct {
	AccountID      string
	AccountCreated bool
	Funded         bool
	FundingAmount  decimal.Decimal
	Status         enums.ProvisioningStatus
}

// Provision brings the (user, company) pairing to the active state: the
// bridging account exists, is funded to the user's community-currency
// balance, and the record is marked active. Any failure leaves the stored
// status untouched so a later attempt can resume.
func (s *Service) Provision(ctx context.Context, userID, companyID string) (*Result, error) {
	record, err := s.directory.Lookup(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithCompanyID(ctx, companyID)
	ctx = s.logger.WithUserID(ctx, userID)

	session, err := s.accounting.Authenticate(ctx, record)
	if err != nil {
		return nil, err
	}

	account, created, err := s.accounting.EnsureBridgeAccount(ctx, session, s.bridgeAccountName)
	if err != nil {
		return nil, err
	}
	result := &Result{AccountID: account.ID, AccountCreated: created}

	// A pre-existing account is not proof of funding; an earlier attempt may
	// have died between account creation and the deposit.
	needFunding := created
	if !created {
		funded, err := s.accounting.HasFundingDeposit(ctx, session, account.ID)
		if err != nil {
			return nil, err
		}
		needFunding = !funded
	}

	if needFunding {
		balance, err := s.currency.Balance(ctx, userID, record.LedgerToken)
		if err != nil {
			return nil, err
		}
		if balance.IsPositive() {
			equity, _, err := s.accounting.EnsureEquityAccount(ctx, session, s.equityAccountName)
			if err != nil {
				return nil, err
			}
			note := fmt.Sprintf("Opening balance for %s", userID)
			if _, err := s.accounting.PostDeposit(ctx, session, equity.ID, account.ID, balance, note); err != nil {
				return nil, err
			}
			result.Funded = true
			result.FundingAmount = balance
		} else {
			ctx := s.logger.WithField(ctx, "balance", balance.String())
			s.logger.Info(ctx, "zero currency balance, skipping funding deposit")
		}
	}

	if err := s.directory.Activate(ctx, userID, companyID); err != nil {
		return nil, err
	}
	result.Status = enums.ProvisioningStatusActive

	s.logger.Info(ctx, "provisioning complete")
	return result, nil
}
