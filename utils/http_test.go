package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteJSON(w, http.StatusOK, map[string]string{"message": "test"}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteJSON(w, http.StatusNoContent, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteOK(w, map[string]string{"result": "success"}))

	var response SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", response.Data.(map[string]interface{})["result"])
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter) error
		wantStatus int
		wantError  string
		wantCode   string
	}{
		{"bad request", func(w http.ResponseWriter) error {
			return WriteBadRequest(w, "unknown_event_type", "unknown event type", map[string]interface{}{"type": "x"})
		}, http.StatusBadRequest, "bad_request", "unknown_event_type"},
		{"unauthorized", func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") }, http.StatusUnauthorized, "unauthorized", ""},
		{"forbidden", func(w http.ResponseWriter) error { return WriteForbidden(w, "") }, http.StatusForbidden, "forbidden", ""},
		{"not found", func(w http.ResponseWriter) error { return WriteNotFound(w, "") }, http.StatusNotFound, "not_found", ""},
		{"unavailable", func(w http.ResponseWriter) error {
			return WriteServiceUnavailable(w, "not_registered", "")
		}, http.StatusServiceUnavailable, "unavailable", "not_registered"},
		{"internal", func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") }, http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))
			assert.Equal(t, tt.wantStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantError, response.Error)
			assert.Equal(t, tt.wantCode, response.Code)
			assert.NotEmpty(t, response.Message)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Type string `json:"type"`
	}

	t.Run("valid", func(t *testing.T) {
		var dst body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"case_created"}`))
		require.NoError(t, DecodeJSON(req, &dst))
		assert.Equal(t, "case_created", dst.Type)
	})

	t.Run("unknown field", func(t *testing.T) {
		var dst body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"kind":"x"}`))
		assert.Error(t, DecodeJSON(req, &dst))
	})

	t.Run("empty", func(t *testing.T) {
		var dst body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		err := DecodeJSON(req, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})
}

func TestQueryHelpers(t *testing.T) {
	q := url.Values{
		"limit": {"25"},
		"bad":   {"ten"},
		"since": {"2026-03-01T00:00:00Z"},
		"types": {"case_created,status_changed", " document_uploaded "},
	}

	n, err := QueryInt(q, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = QueryInt(q, "offset", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = QueryInt(q, "bad", 0)
	assert.Error(t, err)

	since, err := QueryTime(q, "since")
	require.NoError(t, err)
	assert.True(t, since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	until, err := QueryTime(q, "until")
	require.NoError(t, err)
	assert.Nil(t, until)

	_, err = QueryTime(url.Values{"since": {"yesterday"}}, "since")
	assert.Error(t, err)

	assert.Equal(t, []string{"case_created", "status_changed", "document_uploaded"}, QueryList(q, "types"))
	assert.Nil(t, QueryList(q, "categories"))
}
