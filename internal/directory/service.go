package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/leftcoastfs/bridge-backend/pkg/db"
	"github.com/leftcoastfs/bridge-backend/pkg/db/models"
	"github.com/leftcoastfs/bridge-backend/pkg/enums"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
)

// ServiceParams groups dependencies for the directory service.
type ServiceParams struct {
	Repo Repository
}

// Service owns directory records, the (user, company) onboarding state the
// rest of the system keys off.
type Service struct {
	repo Repository
}

// NewService builds a directory service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// Register stores a new (user, company) pairing in pending state.
func (s *Service) Register(ctx context.Context, userID, companyID, refreshToken, ledgerToken string) (*models.DirectoryRecord, error) {
	userID = strings.TrimSpace(userID)
	companyID = strings.TrimSpace(companyID)
	if userID == "" || companyID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and company id are required")
	}
	if strings.TrimSpace(refreshToken) == "" || strings.TrimSpace(ledgerToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "accounting and ledger credentials are required")
	}

	record := &models.DirectoryRecord{
		UserID:                 userID,
		CompanyID:              companyID,
		AccountingRefreshToken: refreshToken,
		LedgerToken:            ledgerToken,
		Status:                 enums.ProvisioningStatusPending,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("directory record for %s/%s already exists", userID, companyID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create directory record")
	}
	return record, nil
}

// Lookup returns the record for the pairing, or a not-found error.
func (s *Service) Lookup(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error) {
	record, err := s.repo.Find(ctx, userID, companyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find directory record")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("no directory record for %s/%s", userID, companyID))
	}
	return record, nil
}

// ListByUser returns every company pairing the user holds.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.DirectoryRecord, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list directory records")
	}
	return records, nil
}

// ListAll returns every record, for credential maintenance sweeps.
func (s *Service) ListAll(ctx context.Context) ([]models.DirectoryRecord, error) {
	records, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list directory records")
	}
	return records, nil
}

// Activate marks the pairing fully provisioned. Activation is monotonic;
// activating an already active record is a no-op.
func (s *Service) Activate(ctx context.Context, userID, companyID string) error {
	if err := s.repo.UpdateStatus(ctx, userID, companyID, enums.ProvisioningStatusActive); err != nil {
		return mapUpdateErr(err, userID, companyID)
	}
	return nil
}

// RotateRefreshToken persists a rotated accounting credential. Callers must
// invoke this before using the session the rotation produced.
func (s *Service) RotateRefreshToken(ctx context.Context, userID, companyID, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refresh token is required")
	}
	if err := s.repo.UpdateRefreshToken(ctx, userID, companyID, refreshToken); err != nil {
		return mapUpdateErr(err, userID, companyID)
	}
	return nil
}

func mapUpdateErr(err error, userID, companyID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("no directory record for %s/%s", userID, companyID))
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update directory record")
}
