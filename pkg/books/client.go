package books

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/leftcoastfs/bridge-backend/pkg/config"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	minorVersion = "65"

	// duplicateNameFaultCode is the ledger's uniqueness-violation business
	// fault. Creation racing another creator surfaces as this code.
	duplicateNameFaultCode = "6240"
	staleObjectFaultCode   = "5010"
)

var (
	errClientIDRequired     = errors.New("books client id is required")
	errClientSecretRequired = errors.New("books client secret is required")
	errLoggerRequired       = errors.New("books logger is required")
	errInvalidBooksEnv      = fmt.Errorf("books environment must be %q or %q", sandboxEnv, productionEnv)
)

var apiBaseURLs = map[string]string{
	sandboxEnv:    "https://sandbox-quickbooks.api.intuit.com",
	productionEnv: "https://quickbooks.api.intuit.com",
}

const defaultTokenURL = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"

// Client exposes the accounting ledger's object API with centralized auth,
// logging, and error mapping. Entity operations require a Session minted by
// Authenticate; the client itself holds no per-company state.
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	environment  string
	apiBaseURL   string
	tokenURL     string
	logger       *logger.Logger
}

// NewClient initializes the ledger wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.BooksConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientSecret == "" {
		return nil, errClientSecretRequired
	}

	apiBaseURL := strings.TrimSpace(cfg.APIBaseURL)
	if apiBaseURL == "" {
		apiBaseURL = apiBaseURLs[env]
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	c := &Client{
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		clientID:     clientID,
		clientSecret: clientSecret,
		environment:  env,
		apiBaseURL:   strings.TrimRight(apiBaseURL, "/"),
		tokenURL:     tokenURL,
		logger:       logg,
	}

	logg.Info(ctx, "books client initialized")
	return c, nil
}

// Environment reports the normalized ledger environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// Authenticate rotates the refresh token and mints a session for the company.
// The caller must persist the returned refresh token before using the session;
// the remote side invalidates the old credential on rotation.
func (c *Client) Authenticate(ctx context.Context, companyID, refreshToken string) (*AuthResult, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id is required")
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeCredential, "refresh token is empty")
	}

	c.log(ctx, "request", "authenticate", map[string]any{"company_id": companyID})

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build token request")
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.mapTransportError(err, "authenticate")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read token response")
	}

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		c.log(ctx, "error", "authenticate", map[string]any{"status": resp.StatusCode})
		return nil, pkgerrors.New(pkgerrors.CodeCredential, "refresh token rejected")
	}
	if resp.StatusCode != http.StatusOK {
		c.log(ctx, "error", "authenticate", map[string]any{"status": resp.StatusCode})
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("token endpoint returned %d", resp.StatusCode))
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode token response")
	}
	if payload.AccessToken == "" || payload.RefreshToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "token response missing credentials")
	}

	c.log(ctx, "response", "authenticate", map[string]any{"company_id": companyID, "expires_in": payload.ExpiresIn})

	return &AuthResult{
		Session:      &Session{CompanyID: companyID, accessToken: payload.AccessToken},
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    payload.ExpiresIn,
	}, nil
}

// query runs a select statement and decodes QueryResponse.<entity> into out.
func (c *Client) query(ctx context.Context, session *Session, entity, statement string, out any) error {
	if session == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "session is required")
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/query", c.apiBaseURL, url.PathEscape(session.CompanyID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build query request")
	}
	q := req.URL.Query()
	q.Set("query", statement)
	q.Set("minorversion", minorVersion)
	req.URL.RawQuery = q.Encode()
	session.authorize(req)

	op := "query_" + strings.ToLower(entity)
	c.log(ctx, "request", op, map[string]any{"statement": statement})

	body, err := c.do(req, op)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return err
	}

	wrapper := map[string]json.RawMessage{}
	var envelope struct {
		QueryResponse json.RawMessage `json:"QueryResponse"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode query response")
	}
	if len(envelope.QueryResponse) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.QueryResponse, &wrapper); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode query payload")
	}
	raw, ok := wrapper[entity]
	if !ok {
		// Empty result sets omit the entity key entirely.
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode query rows")
	}
	return nil
}

// create posts an entity body and decodes the created object from the
// response envelope keyed by entity name.
func (c *Client) create(ctx context.Context, session *Session, entity string, payload, out any) error {
	if session == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "session is required")
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode create payload")
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/%s", c.apiBaseURL, url.PathEscape(session.CompanyID), strings.ToLower(entity))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build create request")
	}
	q := req.URL.Query()
	q.Set("minorversion", minorVersion)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")
	session.authorize(req)

	op := "create_" + strings.ToLower(entity)
	c.log(ctx, "request", op, nil)

	body, err := c.do(req, op)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return err
	}

	wrapper := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode create response")
	}
	raw, ok := wrapper[entity]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("create response missing %s", entity))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode created object")
	}
	c.log(ctx, "response", op, nil)
	return nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.mapTransportError(err, op)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read %s response", op))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, c.mapFault(resp.StatusCode, body, op)
}

func (c *Client) mapTransportError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, fmt.Sprintf("books %s timed out", op))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, fmt.Sprintf("books %s timed out", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("books %s failed", op))
}

type faultEnvelope struct {
	Fault struct {
		Type   string `json:"type"`
		Errors []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
		} `json:"Error"`
	} `json:"Fault"`
}

func (c *Client) mapFault(status int, body []byte, op string) error {
	var fault faultEnvelope
	_ = json.Unmarshal(body, &fault)

	for _, f := range fault.Fault.Errors {
		switch f.Code {
		case duplicateNameFaultCode:
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("books %s: duplicate name", op)).
				WithDetails(map[string]any{"detail": f.Detail})
		case staleObjectFaultCode:
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("books %s: stale object revision", op))
		}
	}

	code := domainCodeForStatus(status)
	msg := fmt.Sprintf("books %s returned %d", op, status)
	if len(fault.Fault.Errors) > 0 {
		msg = fmt.Sprintf("books %s: %s", op, fault.Fault.Errors[0].Message)
	}
	return pkgerrors.New(code, msg)
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeDependency
	}
}

func (s *Session) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("books %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("books %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "authorization"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidBooksEnv
	}
}
