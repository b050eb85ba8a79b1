package journals

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

func TestJournalHandlers(t *testing.T) {
	f := setup(t)
	router := mux.NewRouter()
	NewHandlers(f.svc).RegisterRoutes(router)

	rec := do(t, router, f.author1, http.MethodPost, "/journals", JournalRequest{Name: "Nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, f.editor1, http.MethodPost, "/journals", JournalRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, f.editor1, http.MethodPost, "/journals", JournalRequest{Name: "Alpha"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Journal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	path := "/journals/" + strconv.FormatInt(created.ID, 10)

	rec = do(t, router, f.author1, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, f.admin2, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, f.editor1, http.MethodPut, path+"/accepting", ToggleRequest{Enabled: false})
	require.Equal(t, http.StatusOK, rec.Code)
	var closed Journal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &closed))
	assert.False(t, closed.AcceptingSubmissions)

	rec = do(t, router, f.author1, http.MethodGet, "/journals?accepting=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var open []Journal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &open))
	assert.Empty(t, open)

	rec = do(t, router, f.author1, http.MethodGet, "/journals?accepting=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, f.author1, http.MethodGet, "/journals/search?q=alp", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []Journal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	assert.Len(t, found, 1)
}
