package httputil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "credreg/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeUnauthorized:            http.StatusForbidden,
		dErrors.CodeRoleMismatch:            http.StatusForbidden,
		dErrors.CodeAlreadyRegistered:       http.StatusConflict,
		dErrors.CodeAlreadyRegisteredIssuer: http.StatusConflict,
		dErrors.CodeNotRegistered:           http.StatusNotFound,
		dErrors.CodeInvalidState:            http.StatusConflict,
		dErrors.CodeNotFound:                http.StatusNotFound,
		dErrors.CodeUnauthenticated:         http.StatusUnauthorized,
		dErrors.CodeRateLimited:             http.StatusTooManyRequests,
	}
	for code, status := range cases {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(code, "x"))
		if w.Code != status {
			t.Errorf("%s: expected status %d, got %d", code, status, w.Code)
		}
	}
}

func TestWriteErrorIncludesField(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, dErrors.Invalid("end_date", "must not be before start_date"))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "invalid_payload" || body["field"] != "end_date" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	if err := DecodeJSON(req, &dst); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad_request for unknown field, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	if err := DecodeJSON(req, &dst); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad_request for empty body, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	if err := DecodeJSON(req, &dst); err != nil || dst.Name != "a" {
		t.Fatalf("expected decode success, got %v", err)
	}
}

func TestDecodeOptionalJSON(t *testing.T) {
	type body struct {
		Reason string `json:"reason"`
	}

	// chunked bodies arrive with an unknown length
	req := httptest.NewRequest(http.MethodPost, "/", io.MultiReader())
	if req.ContentLength != -1 {
		t.Fatalf("expected unknown content length, got %d", req.ContentLength)
	}
	var dst body
	if err := DecodeOptionalJSON(req, &dst); err != nil || dst.Reason != "" {
		t.Fatalf("expected empty body to be accepted, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x"}`))
	if err := DecodeOptionalJSON(req, &dst); err != nil || dst.Reason != "x" {
		t.Fatalf("expected decode success, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":`))
	if err := DecodeOptionalJSON(req, &dst); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad_request for truncated body, got %v", err)
	}
}
