package relay

import (
	"context"
	"encoding/json"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/leftcoastfs/bridge-backend/pkg/db/models"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

type directoryLister interface {
	ListByUser(ctx context.Context, userID string) ([]models.DirectoryRecord, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// ServiceParams groups dependencies for the transfer relay.
type ServiceParams struct {
	Directory         directoryLister
	PurchasePublisher publisher
	PaymentPublisher  publisher
	Logger            *logger.Logger
}

// Service fans an inbound transfer event out to per-company work items, one
// per directory match on each side. It performs no deduplication; duplicate
// directory rows are a data-integrity concern upstream of the relay.
type Service struct {
	directory         directoryLister
	purchasePublisher publisher
	paymentPublisher  publisher
	logger            *logger.Logger
}

// NewService builds the transfer relay.
func NewService(params ServiceParams) (*Service, error) {
	if params.Directory == nil {
		return nil, errors.New("directory lister is required")
	}
	if params.PurchasePublisher == nil || params.PaymentPublisher == nil {
		return nil, errors.New("purchase and payment publishers are required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		directory:         params.Directory,
		purchasePublisher: params.PurchasePublisher,
		paymentPublisher:  params.PaymentPublisher,
		logger:            params.Logger,
	}, nil
}

// FanOut reports how many work items a relay produced per side.
type FanOut struct {
	PurchaseItems int
	PaymentItems  int
}

// Relay expands the event's fromUser to purchase-queue work items and its
// toUser to payment-queue work items. An event with no directory matches on
// either side succeeds with zero emissions.
func (s *Service) Relay(ctx context.Context, event TransferEvent) (*FanOut, error) {
	if event.FromUser == "" || event.ToUser == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer event requires fromUser and toUser")
	}
	if !event.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}

	result := &FanOut{}

	fromRecords, err := s.directory.ListByUser(ctx, event.FromUser)
	if err != nil {
		return nil, err
	}
	for _, record := range fromRecords {
		item := WorkItem{
			User:        record.UserID,
			Company:     record.CompanyID,
			Amount:      event.Amount,
			Description: event.Description,
			To:          event.ToUser,
			Billed:      event.Billed,
		}
		if err := s.publish(ctx, s.purchasePublisher, item); err != nil {
			return nil, err
		}
		result.PurchaseItems++
	}

	toRecords, err := s.directory.ListByUser(ctx, event.ToUser)
	if err != nil {
		return nil, err
	}
	for _, record := range toRecords {
		item := WorkItem{
			User:        record.UserID,
			Company:     record.CompanyID,
			Amount:      event.Amount,
			Description: event.Description,
			From:        event.FromUser,
		}
		if err := s.publish(ctx, s.paymentPublisher, item); err != nil {
			return nil, err
		}
		result.PaymentItems++
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"purchase_items": result.PurchaseItems,
		"payment_items":  result.PaymentItems,
	})
	s.logger.Info(ctx, "transfer relayed")
	return result, nil
}

func (s *Service) publish(ctx context.Context, pub publisher, item WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode work item")
	}
	res := pub.Publish(ctx, &gcppubsub.Message{Data: data})
	if _, err := res.Get(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish work item")
	}
	return nil
}

// GCPPublisher adapts a concrete Pub/Sub publisher to the relay's interface.
func GCPPublisher(p *gcppubsub.Publisher) publisher {
	return gcpPublisher{p: p}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}
