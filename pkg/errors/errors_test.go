package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeCredential, status: http.StatusUnauthorized, publicMsg: "accounting credential rejected"},
		{code: CodeLedgerUnavailable, status: http.StatusServiceUnavailable, publicMsg: "currency ledger unavailable", retryable: true, detailsOK: true},
		{code: CodeTimeout, status: http.StatusGatewayTimeout, publicMsg: "upstream timeout", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing amount")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing amount" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	cause := stdErrors.New("remote fault")
	wrapped := Wrap(CodeConflict, cause, "account already exists")
	if wrapped.Code() != CodeConflict {
		t.Fatalf("expected conflict code, got %s", wrapped.Code())
	}
	if !stdErrors.Is(wrapped, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
	if Wrap(CodeConflict, nil, "no cause").Unwrap() != nil {
		t.Fatal("wrapping nil should behave like New")
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(New(CodeCredential, "revoked")) {
		t.Fatal("credential errors must not be retryable")
	}
	if !Retryable(New(CodeTimeout, "deadline")) {
		t.Fatal("timeouts must be retryable")
	}
	if !Retryable(stdErrors.New("untyped")) {
		t.Fatal("untyped errors default to retryable")
	}
}

func TestIsMatchesCodeInChain(t *testing.T) {
	err := Wrap(CodeLedgerUnavailable, stdErrors.New("status 502"), "balance lookup failed")
	if !Is(err, CodeLedgerUnavailable) {
		t.Fatal("expected ledger-unavailable code match")
	}
	if Is(err, CodeConflict) {
		t.Fatal("unexpected conflict code match")
	}
}
