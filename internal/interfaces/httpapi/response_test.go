package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	sonic "github.com/bytedance/sonic"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/rules"
	"github.com/matchpulse/scoring-core/internal/infrastructure/provider"
	"github.com/matchpulse/scoring-core/internal/usecase"
)

func TestWriteSuccess_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSuccess(context.Background(), rec, http.StatusOK, map[string]string{"status": "ok"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}

	if got, _ := body["apiVersion"].(string); got != "2.0" {
		t.Fatalf("expected apiVersion=2.0, got %v", body["apiVersion"])
	}
	if _, ok := body["data"]; !ok {
		t.Fatalf("expected data key in success response")
	}
	if _, ok := body["error"]; ok {
		t.Fatalf("did not expect error key in success response")
	}
}

func TestWriteError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(context.Background(), rec, fmt.Errorf("%w: bad payload", usecase.ErrInvalidInput))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	var body struct {
		APIVersion string `json:"apiVersion"`
		Error      *struct {
			Code   int    `json:"code"`
			Status string `json:"status"`
			Errors []struct {
				Domain string `json:"domain"`
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	if body.Error == nil {
		t.Fatalf("expected error body")
	}
	if body.Error.Status != "INVALID_ARGUMENT" {
		t.Fatalf("expected INVALID_ARGUMENT, got %s", body.Error.Status)
	}
	if len(body.Error.Errors) != 1 || body.Error.Errors[0].Domain != "scoring-core" {
		t.Fatalf("unexpected error items: %+v", body.Error.Errors)
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantCode   int
		wantStatus string
	}{
		{"invalid input", usecase.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unsupported sport", rules.ErrSportNotSupported, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"malformed payload", provider.ErrMalformedPayload, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unauthorized", usecase.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"not found", usecase.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"match not finished", usecase.ErrMatchNotFinished, http.StatusConflict, "FAILED_PRECONDITION"},
		{"match frozen", usecase.ErrMatchFrozen, http.StatusConflict, "FAILED_PRECONDITION"},
		{"version conflict", event.ErrVersionConflict, http.StatusConflict, "ABORTED"},
		{"rate limited", usecase.ErrRateLimited, http.StatusTooManyRequests, "RESOURCE_EXHAUSTED"},
		{"no provider", usecase.ErrNoProviderAvailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"transient provider", provider.ErrTransient, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mapped := mapError(fmt.Errorf("wrapped: %w", tc.err))
			if mapped.HTTPStatus != tc.wantCode {
				t.Fatalf("unexpected status code: got=%d want=%d", mapped.HTTPStatus, tc.wantCode)
			}
			if mapped.Status != tc.wantStatus {
				t.Fatalf("unexpected status: got=%s want=%s", mapped.Status, tc.wantStatus)
			}
		})
	}
}
