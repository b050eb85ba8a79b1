package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/errs"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusCreated, map[string]string{"key": "value"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"key":"value"}`, w.Body.String())
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantField  string
	}{
		{"denied", errs.Denied("change_status"), http.StatusForbidden, "permission_denied", ""},
		{"not found", errs.NotFoundf("get_submission", "submission"), http.StatusNotFound, "not_found", "submission"},
		{"closed", errs.Closed("create_submission"), http.StatusConflict, "submissions_closed", ""},
		{"transition", errs.Transition("change_status", "accepted", "submitted"), http.StatusConflict, "invalid_transition", "accepted->submitted"},
		{"validation", errs.Invalid("create_submission", "title"), http.StatusBadRequest, "validation_error", "title"},
		{"quota", &errs.Error{Kind: errs.QuotaExceeded, Op: "create_journal", Field: "journals"}, http.StatusTooManyRequests, "quota_exceeded", "journals"},
		{"wrapped denied", fmt.Errorf("ctx: %w", errs.Denied("x")), http.StatusForbidden, "permission_denied", ""},
		{"storage failure", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/submissions/1", nil)

			WriteDomainError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantField, resp.Field)
		})
	}
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
