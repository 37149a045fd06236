package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/ecofinds/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Name is required"))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRequest)
	}
	if body.Error != "Name is required" {
		t.Errorf("error = %q, want %q", body.Error, "Name is required")
	}
}

// TestWriteAPIError_StatusFromKind はエラー分類からステータスコードが決まることを検証する。
func TestWriteAPIError_StatusFromKind(t *testing.T) {
	tests := []struct {
		name   string
		err    *model.APIError
		status int
	}{
		{"validation", model.NewValidationError("bad"), http.StatusBadRequest},
		{"email taken", model.NewEmailTakenError(), http.StatusBadRequest},
		{"invalid credentials", model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{"unauthorized", model.NewUnauthorizedError(), http.StatusUnauthorized},
		{"forbidden", model.NewForbiddenError(), http.StatusForbidden},
		{"product not found", model.NewProductNotFoundError(), http.StatusNotFound},
		{"item not found", model.NewItemNotFoundError(), http.StatusNotFound},
		{"internal", model.NewInternalError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteAPIError(w, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			if body.Code != tt.err.Code {
				t.Errorf("code = %q, want %q", body.Code, tt.err.Code)
			}
		})
	}
}

// TestInternalServerError_DoesNotLeakDetails は500レスポンスが一般的なメッセージのみを返すことを検証する。
func TestInternalServerError_DoesNotLeakDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if len(raw) != 2 {
		t.Errorf("body has %d fields, want exactly error and code: %v", len(raw), raw)
	}
	if raw["code"] != model.ErrCodeInternal {
		t.Errorf("code = %v, want %q", raw["code"], model.ErrCodeInternal)
	}
}
