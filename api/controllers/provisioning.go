package controllers

import (
	"context"
	"net/http"

	"github.com/leftcoastfs/bridge-backend/api/responses"
	"github.com/leftcoastfs/bridge-backend/api/validators"
	"github.com/leftcoastfs/bridge-backend/internal/provisioning"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

// ProvisionRequest names the directory pairing to bring to the active state.
type ProvisionRequest struct {
	User    string `json:"user" validate:"required"`
	Company string `json:"company" validate:"required"`
}

type provisioner interface {
	Provision(ctx context.Context, userID, companyID string) (*provisioning.Result, error)
}

// Provision runs the bridging-account workflow for one pairing. The call is
// synchronous and idempotent; re-invoking a provisioned pairing is a no-op.
func Provision(svc provisioner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "provisioning service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body ProvisionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Provision(r.Context(), body.User, body.Company)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"account_id":      result.AccountID,
			"account_created": result.AccountCreated,
			"funded":          result.Funded,
			"status":          string(result.Status),
		})
	}
}
