package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONOrError(t *testing.T) {
	var dest struct {
		Title string `json:"title"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"On Proofs"}`))
	w := httptest.NewRecorder()
	require.True(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, "On Proofs", dest.Title)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{bad`))
	w = httptest.NewRecorder()
	assert.False(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		want    int64
		wantErr bool
	}{
		{"valid", map[string]string{"id": "42"}, 42, false},
		{"missing", map[string]string{}, 0, true},
		{"not a number", map[string]string{"id": "abc"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), tt.vars)
			got, err := ParsePathInt64(r, "id")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&journal_id=9&accepting=true", nil)

	limit, err := ParseQueryInt(r, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	offset, err := ParseQueryInt(r, "offset", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, offset)

	journalID, err := ParseQueryInt64(r, "journal_id", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(9), journalID)

	accepting, err := ParseQueryBool(r, "accepting", false)
	require.NoError(t, err)
	assert.True(t, accepting)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=x", nil), "limit", 0)
	assert.Error(t, err)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&strings.Builder{})

	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mw("a"), mw("b"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
