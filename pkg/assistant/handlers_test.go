package assistant

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
)

func do(t *testing.T, router *mux.Router, u *auth.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(contextkeys.WithAuth(req.Context(), &auth.AuthContext{User: u}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAssistantHandlers(t *testing.T) {
	f := setup(t, nil)
	router := mux.NewRouter()
	NewHandlers(f.svc).RegisterRoutes(router)

	rec := do(t, router, f.alice, http.MethodPost, "/assistant/conversations", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var c Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	path := "/assistant/conversations/" + strconv.FormatInt(c.ID, 10)

	rec = do(t, router, f.alice, http.MethodPost, path+"/messages", SendRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, f.alice, http.MethodPost, path+"/messages", SendRequest{Message: "How do I cite a dataset?"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var ex Exchange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ex))
	assert.Equal(t, "How do I cite a dataset?", ex.UserMessage.Content)
	assert.NotEmpty(t, ex.AssistantMessage.Content)

	rec = do(t, router, f.bob, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, f.alice, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Messages, 2)

	rec = do(t, router, f.alice, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, f.alice, http.MethodGet, "/assistant/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}
