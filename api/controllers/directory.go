package controllers

import (
	"context"
	"net/http"

	"github.com/leftcoastfs/bridge-backend/api/responses"
	"github.com/leftcoastfs/bridge-backend/api/validators"
	"github.com/leftcoastfs/bridge-backend/pkg/db/models"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

// RegisterRequest pairs a user with a ledger company and carries the
// credentials for both remote services.
type RegisterRequest struct {
	User                   string `json:"user" validate:"required"`
	Company                string `json:"company" validate:"required"`
	AccountingRefreshToken string `json:"accounting_refresh_token" validate:"required"`
	LedgerToken            string `json:"ledger_token" validate:"required"`
}

type directoryRegistrar interface {
	Register(ctx context.Context, userID, companyID, refreshToken, ledgerToken string) (*models.DirectoryRecord, error)
}

// DirectoryRegister stores a new pairing in pending state. Provisioning is a
// separate, explicit step.
func DirectoryRegister(svc directoryRegistrar, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "directory service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Register(r.Context(), body.User, body.Company, body.AccountingRefreshToken, body.LedgerToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{
			"user":    record.UserID,
			"company": record.CompanyID,
			"status":  string(record.Status),
		})
	}
}
