package cron

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/leftcoastfs/bridge-backend/pkg/books"
	"github.com/leftcoastfs/bridge-backend/pkg/db/models"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

type credentialRotator interface {
	Authenticate(ctx context.Context, companyID, refreshToken string) (*books.AuthResult, error)
}

type recordStore interface {
	ListAll(ctx context.Context) ([]models.DirectoryRecord, error)
	RotateRefreshToken(ctx context.Context, userID, companyID, refreshToken string) error
}

// TokenRefreshJobParams configure the credential sweep.
type TokenRefreshJobParams struct {
	Books     credentialRotator
	Directory recordStore
	Logger    *logger.Logger
}

// TokenRefreshJob rotates every stored accounting refresh token so none of
// them age past the ledger's validity window. One record's failure never
// stops the sweep; failures are aggregated and reported at the end.
type TokenRefreshJob struct {
	books     credentialRotator
	directory recordStore
	logg      *logger.Logger
}

// NewTokenRefreshJob builds the credential sweep job.
func NewTokenRefreshJob(params TokenRefreshJobParams) (*TokenRefreshJob, error) {
	if params.Books == nil {
		return nil, errors.New("books client is required")
	}
	if params.Directory == nil {
		return nil, errors.New("directory service is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &TokenRefreshJob{
		books:     params.Books,
		directory: params.Directory,
		logg:      params.Logger,
	}, nil
}

// Name identifies the job in logs and metrics.
func (j *TokenRefreshJob) Name() string { return "token_refresh" }

// Run sweeps every directory record, rotating and persisting its credential.
func (j *TokenRefreshJob) Run(ctx context.Context) error {
	records, err := j.directory.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list directory records: %w", err)
	}

	var errs error
	refreshed := 0
	for _, record := range records {
		if err := j.refresh(ctx, record); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("refresh %s/%s: %w", record.UserID, record.CompanyID, err))
			continue
		}
		refreshed++
	}

	ctx = j.logg.WithFields(ctx, map[string]any{
		"records":   len(records),
		"refreshed": refreshed,
		"failed":    len(multierr.Errors(errs)),
	})
	j.logg.Info(ctx, "token refresh sweep finished")
	return errs
}

func (j *TokenRefreshJob) refresh(ctx context.Context, record models.DirectoryRecord) error {
	ctx = j.logg.WithCompanyID(ctx, record.CompanyID)
	ctx = j.logg.WithUserID(ctx, record.UserID)

	result, err := j.books.Authenticate(ctx, record.CompanyID, record.AccountingRefreshToken)
	if err != nil {
		j.logg.Error(ctx, "credential rotation failed", err)
		return err
	}
	if err := j.directory.RotateRefreshToken(ctx, record.UserID, record.CompanyID, result.RefreshToken); err != nil {
		j.logg.Error(ctx, "failed to persist rotated credential", err)
		return err
	}
	return nil
}
