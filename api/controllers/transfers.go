package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/leftcoastfs/bridge-backend/api/responses"
	"github.com/leftcoastfs/bridge-backend/api/validators"
	"github.com/leftcoastfs/bridge-backend/internal/relay"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

// TransferRequest is the inbound transfer event body. Amount accepts either a
// JSON number or a quoted decimal string.
type TransferRequest struct {
	FromUser    string          `json:"fromUser" validate:"required"`
	ToUser      string          `json:"toUser" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description"`
	Billed      bool            `json:"billed"`
}

type transferRelay interface {
	Relay(ctx context.Context, event relay.TransferEvent) (*relay.FanOut, error)
}

// Transfers accepts a transfer event and fans it out to the work queues.
func Transfers(svc transferRelay, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "relay service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body TransferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Relay(r.Context(), relay.TransferEvent{
			FromUser:    body.FromUser,
			ToUser:      body.ToUser,
			Amount:      body.Amount,
			Description: body.Description,
			Billed:      body.Billed,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]int{
			"purchase_items": result.PurchaseItems,
			"payment_items":  result.PaymentItems,
		})
	}
}
