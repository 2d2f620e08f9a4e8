package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "smartparking/pkg/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "conflict",
			err:        apperrors.Conflict("Slot is already booked for this time slot."),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeConflict,
			wantMsg:    "Slot is already booked for this time slot.",
		},
		{
			name:       "invalid credentials",
			err:        apperrors.InvalidCredentials(),
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperrors.CodeInvalidCredentials,
			wantMsg:    "Invalid credentials",
		},
		{
			name:       "plain error is hidden",
			err:        errors.New("mongo: connection pool exhausted"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.CodeInternal,
			wantMsg:    "Server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			if err := WriteError(w, tt.err); err != nil {
				t.Fatalf("WriteError() returned %v", err)
			}

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp apperrors.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if resp.Success {
				t.Errorf("success must be false")
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Code, tt.wantCode)
			}
			if resp.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMsg)
			}
		})
	}
}

func TestDecodeJSON_InvalidBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/book", strings.NewReader("{not json"))
	var dst map[string]any

	err := DecodeJSON(r, &dst)
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}
