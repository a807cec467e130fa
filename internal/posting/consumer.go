package posting

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/shopspring/decimal"

	"github.com/leftcoastfs/bridge-backend/internal/relay"
	"github.com/leftcoastfs/bridge-backend/pkg/books"
	"github.com/leftcoastfs/bridge-backend/pkg/db/models"
	"github.com/leftcoastfs/bridge-backend/pkg/enums"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

// gateway is the slice of the accounting service the poster drives.
type gateway interface {
	Authenticate(ctx context.Context, record *models.DirectoryRecord) (*books.Session, error)
	FindAccount(ctx context.Context, session *books.Session, name string) (*books.Account, error)
	EnsureVendor(ctx context.Context, session *books.Session, displayName string) (*books.Vendor, error)
	EnsureCustomer(ctx context.Context, session *books.Session, displayName string) (*books.Customer, error)
	PostPurchase(ctx context.Context, session *books.Session, bridgeAccountID, vendorID string, amount decimal.Decimal, description string) (*books.Purchase, error)
	PostBilledPurchase(ctx context.Context, session *books.Session, bridgeAccountID, vendorID string, amount decimal.Decimal, description string) (*books.BillPayment, error)
	PostPayment(ctx context.Context, session *books.Session, bridgeAccountID, customerID string, amount decimal.Decimal, description string) (*books.Payment, error)
}

type directoryLookup interface {
	Lookup(ctx context.Context, userID, companyID string) (*models.DirectoryRecord, error)
}

// ConsumerParams groups dependencies for a transaction poster.
type ConsumerParams struct {
	Side              enums.TransferSide
	Subscription      *pubsub.Subscriber
	Accounting        gateway
	Directory         directoryLookup
	Logger            *logger.Logger
	BridgeAccountName string
}

// Consumer drains one work-item queue and posts the corresponding ledger
// transaction. Purchase-side items become check purchases (or billed
// settlements), payment-side items become customer receipts.
type Consumer struct {
	side              enums.TransferSide
	subscription      *pubsub.Subscriber
	accounting        gateway
	directory         directoryLookup
	logg              *logger.Logger
	bridgeAccountName string
}

// NewConsumer builds a poster for one side's subscription.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if !params.Side.IsValid() {
		return nil, errors.New("transfer side is required")
	}
	if params.Subscription == nil {
		return nil, errors.New("subscription is required")
	}
	if params.Accounting == nil {
		return nil, errors.New("accounting gateway is required")
	}
	if params.Directory == nil {
		return nil, errors.New("directory lookup is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.BridgeAccountName == "" {
		return nil, errors.New("bridge account name is required")
	}
	return &Consumer{
		side:              params.Side,
		subscription:      params.Subscription,
		accounting:        params.Accounting,
		directory:         params.Directory,
		logg:              params.Logger,
		bridgeAccountName: params.BridgeAccountName,
	}, nil
}

// Run processes messages until the context is canceled or the subscription
// errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msgID string, data []byte) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msgID,
		"side":       string(c.side),
	})

	var item relay.WorkItem
	if err := json.Unmarshal(data, &item); err != nil {
		c.logg.Error(logCtx, "discarding malformed work item", err)
		return processResult{ack: true}
	}
	if err := validateItem(c.side, item); err != nil {
		c.logg.Error(logCtx, "discarding invalid work item", err)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"user_id":    item.User,
		"company_id": item.Company,
	})

	record, err := c.directory.Lookup(logCtx, item.User, item.Company)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			// The relay only emits items for registered pairings; a missing
			// record means it was removed since and the item is unpostable.
			c.logg.Error(logCtx, "discarding work item without directory record", err)
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "directory lookup failed", err)
		return processResult{nack: true}
	}

	session, err := c.accounting.Authenticate(logCtx, record)
	if err != nil {
		return c.failure(logCtx, "ledger authentication failed", err)
	}

	account, err := c.accounting.FindAccount(logCtx, session, c.bridgeAccountName)
	if err != nil {
		return c.failure(logCtx, "bridging account lookup failed", err)
	}
	if account == nil {
		// Provisioning has not finished for this company yet. Redeliver
		// rather than create a second account here.
		c.logg.Warn(logCtx, "bridging account not provisioned yet, requeueing")
		return processResult{nack: true}
	}

	if c.side == enums.TransferSidePurchase {
		err = c.postPurchase(logCtx, session, account, item)
	} else {
		err = c.postPayment(logCtx, session, account, item)
	}
	if err != nil {
		return c.failure(logCtx, "posting failed", err)
	}

	c.logg.Info(logCtx, "work item posted")
	return processResult{ack: true}
}

func (c *Consumer) postPurchase(ctx context.Context, session *books.Session, account *books.Account, item relay.WorkItem) error {
	vendor, err := c.accounting.EnsureVendor(ctx, session, item.To)
	if err != nil {
		return err
	}
	if item.Billed {
		_, err = c.accounting.PostBilledPurchase(ctx, session, account.ID, vendor.ID, item.Amount, item.Description)
		return err
	}
	_, err = c.accounting.PostPurchase(ctx, session, account.ID, vendor.ID, item.Amount, item.Description)
	return err
}

func (c *Consumer) postPayment(ctx context.Context, session *books.Session, account *books.Account, item relay.WorkItem) error {
	customer, err := c.accounting.EnsureCustomer(ctx, session, item.From)
	if err != nil {
		return err
	}
	_, err = c.accounting.PostPayment(ctx, session, account.ID, customer.ID, item.Amount, item.Description)
	return err
}

func (c *Consumer) failure(ctx context.Context, msg string, err error) processResult {
	c.logg.Error(ctx, msg, err)
	if pkgerrors.Retryable(err) {
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func validateItem(side enums.TransferSide, item relay.WorkItem) error {
	if item.User == "" || item.Company == "" {
		return errors.New("work item missing user or company")
	}
	if !item.Amount.IsPositive() {
		return errors.New("work item amount must be positive")
	}
	if side == enums.TransferSidePurchase && item.To == "" {
		return errors.New("purchase item missing counterparty")
	}
	if side == enums.TransferSidePayment && item.From == "" {
		return errors.New("payment item missing counterparty")
	}
	return nil
}
