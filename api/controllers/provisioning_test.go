package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leftcoastfs/bridge-backend/internal/provisioning"
	"github.com/leftcoastfs/bridge-backend/pkg/enums"
	pkgerrors "github.com/leftcoastfs/bridge-backend/pkg/errors"
)

type stubProvisioner struct {
	result *provisioning.Result
	err    error
}

func (s *stubProvisioner) Provision(ctx context.Context, userID, companyID string) (*provisioning.Result, error) {
	return s.result, s.err
}

func TestProvisionSuccess(t *testing.T) {
	svc := &stubProvisioner{result: &provisioning.Result{
		AccountID:      "35",
		AccountCreated: true,
		Funded:         true,
		Status:         enums.ProvisioningStatusActive,
	}}
	handler := Provision(svc, controllerTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/provisioning",
		strings.NewReader(`{"user":"alice","company":"realm-1"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProvisionLedgerOutageMapsToServiceUnavailable(t *testing.T) {
	svc := &stubProvisioner{err: pkgerrors.New(pkgerrors.CodeLedgerUnavailable, "balance service down")}
	handler := Provision(svc, controllerTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/provisioning",
		strings.NewReader(`{"user":"alice","company":"realm-1"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProvisionUnknownPairing(t *testing.T) {
	svc := &stubProvisioner{err: pkgerrors.New(pkgerrors.CodeNotFound, "no directory record for alice/realm-9")}
	handler := Provision(svc, controllerTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/provisioning",
		strings.NewReader(`{"user":"alice","company":"realm-9"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
