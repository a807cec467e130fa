package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/leftcoastfs/bridge-backend/pkg/config"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("currency base url is required")
	errLoggerRequired  = errors.New("currency logger is required")
)

// Client reads community-currency balances from the mutual-credit service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// AccountBalance is one community-currency account held by a user.
type AccountBalance struct {
	AccountID string
	Balance   decimal.Decimal
}

func NewClient(ctx context.Context, cfg config.CurrencyConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logg,
	}

	logg.Info(ctx, "currency client initialized")
	return c, nil
}

// Balance returns the user's community-currency balance. Users with several
// accounts are settled through the first one; the extras are logged and
// ignored.
func (c *Client) Balance(ctx context.Context, userID, ledgerToken string) (decimal.Decimal, error) {
	accounts, err := c.Accounts(ctx, userID, ledgerToken)
	if err != nil {
		return decimal.Zero, err
	}
	if len(accounts) == 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no currency accounts for user %s", userID))
	}
	if len(accounts) > 1 {
		ctx = c.logger.WithFields(ctx, map[string]any{
			"user_id":       userID,
			"account_count": len(accounts),
		})
		c.logger.Warn(ctx, "user holds multiple currency accounts, using the first")
	}
	return accounts[0].Balance, nil
}

// Accounts lists the user's community-currency accounts in service order.
func (c *Client) Accounts(ctx context.Context, userID, ledgerToken string) ([]AccountBalance, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(ledgerToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeCredential, "ledger token is empty")
	}

	endpoint := fmt.Sprintf("%s/api/%s/accounts", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build accounts request")
	}
	req.Header.Set("Authorization", ledgerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "currency accounts timed out")
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "currency accounts timed out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeLedgerUnavailable, err, "currency accounts failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeLedgerUnavailable, err, "read accounts response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, pkgerrors.New(pkgerrors.CodeCredential, "ledger token rejected")
	case resp.StatusCode != http.StatusOK:
		return nil, pkgerrors.New(pkgerrors.CodeLedgerUnavailable,
			fmt.Sprintf("currency service returned %d", resp.StatusCode))
	}

	var rows []struct {
		ID     string `json:"id"`
		Status struct {
			Balance decimal.Decimal `json:"balance"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeLedgerUnavailable, err, "decode accounts response")
	}

	accounts := make([]AccountBalance, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, AccountBalance{AccountID: row.ID, Balance: row.Status.Balance})
	}
	return accounts, nil
}
